package validation

import (
	"fmt"
	"strings"
)

const (
	// MaxTitleLen matches the title column width.
	MaxTitleLen = 100
	// MaxContentLen keeps pathological submissions out of the store.
	MaxContentLen = 50000
	// MaxCommentLen bounds a single comment.
	MaxCommentLen = 10000
	// MaxBioLen bounds the profile bio.
	MaxBioLen = 2000
)

// ValidatePostTitle checks a post title.
func ValidatePostTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("title is required")
	}
	if len(title) > MaxTitleLen {
		return fmt.Errorf("title too long (max %d characters)", MaxTitleLen)
	}
	return nil
}

// ValidatePostContent checks a post body.
func ValidatePostContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("content is required")
	}
	if len(content) > MaxContentLen {
		return fmt.Errorf("content too long (max %d characters)", MaxContentLen)
	}
	return nil
}

// ValidateCommentContent checks a comment body.
func ValidateCommentContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("comment cannot be empty")
	}
	if len(content) > MaxCommentLen {
		return fmt.Errorf("comment too long (max %d characters)", MaxCommentLen)
	}
	return nil
}

// ValidateBio checks a profile bio.
func ValidateBio(bio string) error {
	if len(bio) > MaxBioLen {
		return fmt.Errorf("bio too long (max %d characters)", MaxBioLen)
	}
	return nil
}
