package model

import (
	"errors"
	"strings"
)

// ContentKind 消息内容形态
type ContentKind int8

const (
	ContentText  ContentKind = 1 // 纯文本
	ContentMedia ContentKind = 2 // 纯附件
	ContentMixed ContentKind = 3 // 文本 + 附件
)

var ErrEmptyContent = errors.New("message requires text or media")

// Attachment 附件描述，由对象存储生成，这里只存储和回显
type Attachment struct {
	Type     string  `bson:"type" json:"type"` // image / audio / video / file
	URL      string  `bson:"url" json:"url"`
	MimeType string  `bson:"mime_type,omitempty" json:"mimeType,omitempty"`
	Width    int     `bson:"width,omitempty" json:"width,omitempty"`
	Height   int     `bson:"height,omitempty" json:"height,omitempty"`
	Duration float64 `bson:"duration,omitempty" json:"duration,omitempty"`
	CoverURL string  `bson:"cover_url,omitempty" json:"coverUrl,omitempty"`
}

// Content 只能通过 NewContent 构造，保证至少含文本或附件之一
type Content struct {
	kind  ContentKind
	text  string
	media []Attachment
}

// NewContent 校验并构造消息内容，空白文本视为缺省
func NewContent(text string, media []Attachment) (Content, error) {
	hasText := strings.TrimSpace(text) != ""
	hasMedia := len(media) > 0

	switch {
	case hasText && hasMedia:
		return Content{kind: ContentMixed, text: text, media: cloneMedia(media)}, nil
	case hasText:
		return Content{kind: ContentText, text: text}, nil
	case hasMedia:
		return Content{kind: ContentMedia, media: cloneMedia(media)}, nil
	default:
		return Content{}, ErrEmptyContent
	}
}

func (c Content) Kind() ContentKind { return c.kind }

func (c Content) Text() string { return c.text }

func (c Content) Media() []Attachment { return cloneMedia(c.media) }

// Preview 会话列表预览文案
func (c Content) Preview() string {
	return PreviewOf(c.text, c.media)
}

// PreviewOf 文本优先；只有附件时显示 [type]；都没有返回空串
func PreviewOf(text string, media []Attachment) string {
	if strings.TrimSpace(text) != "" {
		return text
	}
	if len(media) > 0 {
		return "[" + media[0].Type + "]"
	}
	return ""
}

func cloneMedia(media []Attachment) []Attachment {
	if len(media) == 0 {
		return nil
	}
	out := make([]Attachment, len(media))
	copy(out, media)
	return out
}
