package simplepublish

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Request DTOs. Optional attributes are pointers (or nil-able maps/slices):
// the validator applies a guard only when the field is present, and presence
// of an unsupported field is itself an error.

// PolicyValue carries a requested comment/trackback policy before coercion.
// Clients may send the string tokens "open"/"closed" or a legacy numeric
// code (0 and 2 mean closed, 1 means open).
type PolicyValue struct {
	raw any
}

// NewPolicyValue wraps a raw policy value for coercion.
func NewPolicyValue(v any) *PolicyValue { return &PolicyValue{raw: v} }

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (p *PolicyValue) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	p.raw = v
	return nil
}

// Policy coerces the raw value. Unknown tokens and codes are terminal
// validation failures.
func (p *PolicyValue) Policy() (Policy, error) {
	switch v := p.raw.(type) {
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return policyFromCode(n)
		}
		switch Policy(v) {
		case PolicyOpen:
			return PolicyOpen, nil
		case PolicyClosed:
			return PolicyClosed, nil
		}
		return "", NewError(CodeInvalidArgument, "invalid policy option %q", v)
	case int:
		return policyFromCode(v)
	case int64:
		return policyFromCode(int(v))
	case float64:
		return policyFromCode(int(v))
	default:
		return "", NewError(CodeInvalidArgument, "invalid policy option %v", v)
	}
}

func policyFromCode(code int) (Policy, error) {
	switch code {
	case 0, 2:
		return PolicyClosed, nil
	case 1:
		return PolicyOpen, nil
	default:
		return "", NewError(CodeInvalidArgument, "invalid policy option %d", code)
	}
}

func (p *PolicyValue) String() string { return fmt.Sprintf("%v", p.raw) }

// PostContent holds the optional attributes shared by create and edit
// requests. Field names follow the wire vocabulary of the legacy API.
type PostContent struct {
	Status       string       `json:"post_status,omitempty"`
	Password     *string      `json:"wp_password,omitempty"`
	Slug         *string      `json:"wp_slug,omitempty"`
	MenuOrder    *int         `json:"wp_page_order,omitempty"`
	ParentID     *int64       `json:"wp_page_parent_id,omitempty"`
	PageTemplate *string      `json:"wp_page_template,omitempty"`
	AuthorID     *int64       `json:"wp_author_id,omitempty"`
	Title        *string      `json:"title,omitempty"`
	Content      *string      `json:"description,omitempty"`
	Excerpt      *string      `json:"mt_excerpt,omitempty"`
	Comments     *PolicyValue `json:"mt_allow_comments,omitempty"`
	Pings        *PolicyValue `json:"mt_allow_pings,omitempty"`
	TextMore     *string      `json:"mt_text_more,omitempty"`
	PingURLs     []string     `json:"mt_tb_ping_urls,omitempty"`
	Date         *time.Time   `json:"dateCreated,omitempty"`
	DateGMT      *time.Time   `json:"date_created_gmt,omitempty"`
	Sticky       *bool        `json:"sticky,omitempty"`

	CustomFields map[string][]string `json:"custom_fields,omitempty"`
	Enclosure    *Enclosure          `json:"enclosure,omitempty"`

	// Terms is the modern per-taxonomy assignment map. When present and
	// successfully applied it short-circuits the legacy forms below.
	Terms map[string][]int64 `json:"terms,omitempty"`

	// Legacy assignment forms.
	Categories []string `json:"categories,omitempty"`
	Keywords   []string `json:"mt_keywords,omitempty"`
	Format     *string  `json:"wp_post_format,omitempty"`
}

// CreatePostRequest contains parameters for creating a post.
type CreatePostRequest struct {
	Type    string `json:"post_type"`
	Publish bool   `json:"publish"`
	PostContent
}

// EditPostRequest contains parameters for editing a post.
type EditPostRequest struct {
	ID      int64 `json:"post_id"`
	Publish bool  `json:"publish"`
	PostContent
}

// CreateTermRequest contains parameters for creating a term.
type CreateTermRequest struct {
	Taxonomy    string `json:"taxonomy"`
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	Description string `json:"description,omitempty"`
	ParentID    *int64 `json:"parent,omitempty"`
}

// EditTermRequest contains parameters for editing a term.
type EditTermRequest struct {
	ID          int64   `json:"term_id"`
	Taxonomy    string  `json:"taxonomy"`
	Name        *string `json:"name,omitempty"`
	Slug        *string `json:"slug,omitempty"`
	Description *string `json:"description,omitempty"`
	ParentID    *int64  `json:"parent,omitempty"`
}

// CreateUserRequest contains parameters for creating a user.
type CreateUserRequest struct {
	Login     string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email"`
	Role      string `json:"role,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	URL       string `json:"url,omitempty"`
}

// EditUserRequest contains parameters for editing a user. Login is accepted
// only so the immutability rule can reject a change attempt.
type EditUserRequest struct {
	ID             int64             `json:"user_id"`
	Login          *string           `json:"username,omitempty"`
	Password       *string           `json:"password,omitempty"`
	Email          *string           `json:"email,omitempty"`
	Role           *string           `json:"role,omitempty"`
	FirstName      *string           `json:"first_name,omitempty"`
	LastName       *string           `json:"last_name,omitempty"`
	URL            *string           `json:"url,omitempty"`
	Nickname       *string           `json:"nickname,omitempty"`
	NiceName       *string           `json:"usernicename,omitempty"`
	Bio            *string           `json:"bio,omitempty"`
	ContactMethods map[string]string `json:"user_contacts,omitempty"`
}

// CreateAttachmentRequest contains parameters for uploading a media file and
// registering its attachment post.
type CreateAttachmentRequest struct {
	FileName string
	MimeType string
	Data     []byte
}
