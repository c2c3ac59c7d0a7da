package filemgr

import "errors"

type EntityType string

const EntityCrop EntityType = "crops"

// MaxImageSize bounds a single uploaded image.
const MaxImageSize = 10 << 20

const ThumbWidth = 300

var (
	AllowedMIMEs = []string{"image/jpeg", "image/png", "image/webp"}

	ErrInvalidMIME  = errors.New("only JPEG, PNG or WebP images are allowed")
	ErrFileTooLarge = errors.New("image exceeds 10MB")
	ErrDecode       = errors.New("image could not be decoded")
)
