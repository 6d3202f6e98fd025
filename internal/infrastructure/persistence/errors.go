package persistence

import (
	"errors"

	"github.com/alttext/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// translate maps gorm.ErrRecordNotFound to shared.ErrNotFound
func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}
