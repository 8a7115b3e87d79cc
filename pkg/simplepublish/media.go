package simplepublish

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Custom-field keys backing the media library.
const (
	fieldKeyEnclosure     = "enclosure"
	fieldKeyAttachmentURL = "attachment_url"
	fieldKeyAttachmentKey = "attachment_key"
	fieldKeyMimeType      = "attachment_mime_type"
)

// CreateAttachment uploads the file to the blob store and registers the
// attachment post that tracks it. The post starts unattached (parent zero);
// a later post create or edit whose content references the file's URL
// adopts it.
func (s *service) CreateAttachment(ctx context.Context, actor int64, req CreateAttachmentRequest) (*Post, string, error) {
	pt, ok := s.registry.PostType(TypeAttachment)
	if !ok {
		return nil, "", NewError(CodeInternal, "the attachment post type is not registered")
	}
	if !s.gate.Allowed(ctx, actor, pt.Capabilities.EditPosts, 0) {
		return nil, "", NewError(CodeUnauthorized, "you are not allowed to upload files")
	}
	if s.media == nil {
		return nil, "", NewError(CodeInternal, "no media store configured")
	}
	if req.FileName == "" {
		return nil, "", NewError(CodeInvalidArgument, "file name cannot be empty")
	}
	if len(req.Data) == 0 {
		return nil, "", NewError(CodeInvalidArgument, "file data cannot be empty")
	}

	key := fmt.Sprintf("%s/%s", uuid.New().String(), req.FileName)
	if err := s.media.Upload(ctx, key, bytes.NewReader(req.Data)); err != nil {
		return nil, "", WrapError(CodeInternal, err, "upload media file")
	}

	url, err := s.media.DownloadURL(ctx, key)
	if err != nil {
		return nil, "", WrapError(CodeInternal, err, "resolve media URL")
	}

	now := s.now()
	post := &Post{
		Type:        TypeAttachment,
		Status:      StatusPublish,
		Title:       req.FileName,
		AuthorID:    actor,
		Date:        now,
		DateGMT:     now.UTC(),
		Modified:    now,
		ModifiedGMT: now.UTC(),
	}
	id, err := s.repo.CreatePost(ctx, post)
	if err != nil {
		// The blob is already durable; drop it rather than leak it.
		_ = s.media.Delete(ctx, key)
		return nil, "", WrapError(CodeInternal, err, "register attachment")
	}
	post.ID = id

	for k, v := range map[string]string{
		fieldKeyAttachmentURL: url,
		fieldKeyAttachmentKey: key,
		fieldKeyMimeType:      req.MimeType,
	} {
		if v == "" {
			continue
		}
		if err := s.repo.AddCustomField(ctx, id, k, v); err != nil {
			return nil, "", WrapError(CodeInternal, err, "record attachment metadata")
		}
	}

	return post, url, nil
}

// addEnclosureIfNew stores the enclosure unless one with the same URL is
// already present. The stored form is "url\nlength\ntype" and the first
// matching value wins, so repeated writes stay idempotent.
func (s *service) addEnclosureIfNew(ctx context.Context, postID int64, enc *Enclosure) error {
	fields, err := s.repo.GetCustomFields(ctx, postID)
	if err != nil {
		return WrapError(CodeInternal, err, "get custom fields")
	}
	for _, value := range fields[fieldKeyEnclosure] {
		url, _, _ := strings.Cut(value, "\n")
		if strings.TrimSpace(url) == enc.URL {
			return nil
		}
	}
	if err := s.repo.AddCustomField(ctx, postID, fieldKeyEnclosure, encodeEnclosure(enc)); err != nil {
		return WrapError(CodeInternal, err, "add enclosure")
	}
	return nil
}

// attachUploads adopts unattached media whose URL appears in the post body.
func (s *service) attachUploads(ctx context.Context, postID int64, content string) error {
	if content == "" {
		return nil
	}
	var orphan int64
	attachments, err := s.repo.ListPosts(ctx, PostFilter{Type: TypeAttachment, ParentID: &orphan})
	if err != nil {
		return WrapError(CodeInternal, err, "list unattached media")
	}
	for _, att := range attachments {
		fields, err := s.repo.GetCustomFields(ctx, att.ID)
		if err != nil {
			return WrapError(CodeInternal, err, "get attachment metadata")
		}
		urls := fields[fieldKeyAttachmentURL]
		if len(urls) == 0 || urls[0] == "" || !strings.Contains(content, urls[0]) {
			continue
		}
		att.ParentID = postID
		if _, err := s.repo.UpdatePost(ctx, att); err != nil {
			return WrapError(CodeInternal, err, "attach media to post")
		}
	}
	return nil
}
