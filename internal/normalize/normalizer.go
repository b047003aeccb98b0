// Package normalize turns native QQ and Telegram message content into
// platform-neutral segments.
package normalize

import (
	"context"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	"github.com/sirupsen/logrus"

	"qtbridge/internal/correlation"
	"qtbridge/internal/facemap"
	"qtbridge/internal/models"
	"qtbridge/pkg/onebot"
)

// MemberDirectory looks up how a group member is displayed
type MemberDirectory interface {
	MemberName(ctx context.Context, groupID, userID int64) (string, error)
}

// FileResolver resolves Telegram file handles
type FileResolver interface {
	ResolveFile(ctx context.Context, fileID string) (models.FileURLs, error)
}

type Normalizer struct {
	store   *correlation.Store
	members MemberDirectory
	files   FileResolver
	faces   *facemap.Table
	labels  models.Labels
	logger  *logrus.Logger
}

func NewNormalizer(store *correlation.Store, members MemberDirectory, files FileResolver, faces *facemap.Table, labels models.Labels, logger *logrus.Logger) *Normalizer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Normalizer{
		store:   store,
		members: members,
		files:   files,
		faces:   faces,
		labels:  labels,
		logger:  logger,
	}
}

// Normalize converts the native payload of ev into segments in arrival
// order. Units that cannot be represented are logged and skipped; it never
// fails as a whole.
func (n *Normalizer) Normalize(ctx context.Context, ev *models.InboundEvent) []models.Segment {
	switch {
	case ev.QQ != nil && ev.Kind == models.EventFile:
		return n.fromQQFile(ev.QQ)
	case ev.QQ != nil:
		return n.fromQQ(ctx, ev)
	case ev.Telegram != nil:
		return n.fromTelegram(ctx, ev)
	}
	return nil
}

func (n *Normalizer) fromQQ(ctx context.Context, ev *models.InboundEvent) []models.Segment {
	segments := make([]models.Segment, 0, len(ev.QQ.Message))

	for _, unit := range ev.QQ.Message {
		switch unit.Type {
		case onebot.SegmentText:
			if text := unit.Get("text"); text != "" {
				segments = append(segments, models.TextSegment(text))
			}

		case onebot.SegmentAt:
			segments = append(segments, n.mention(ctx, ev.QQ, unit.Get("qq")))

		case onebot.SegmentFace:
			code := unit.Get("id")
			glyph, known := n.faces.Render(code)
			if !known {
				n.logger.WithField("face_id", code).Debug("Unknown QQ face, using fallback label")
			}
			segments = append(segments, models.TextSegment(glyph))

		case onebot.SegmentImage:
			url := unit.Get("url")
			if url == "" {
				url = unit.Get("file")
			}
			if url == "" {
				n.logger.Warn("QQ image segment without url")
				continue
			}
			segments = append(segments, models.ImageSegment(url))

		case onebot.SegmentReply:
			raw := unit.Get("id")
			ref := models.MessageIdentity{Platform: models.PlatformQQ, Scope: ev.Scope(), MessageID: raw}
			segments = append(segments, models.ReplySegment(n.resolveReply(ref, models.PlatformTelegram), raw))

		case onebot.SegmentVideo:
			segments = append(segments, models.UnsupportedSegment(unit.Type, n.labels.Video))
		case onebot.SegmentRecord:
			segments = append(segments, models.UnsupportedSegment(unit.Type, n.labels.Voice))
		case onebot.SegmentForward:
			segments = append(segments, models.UnsupportedSegment(unit.Type, n.labels.Forward))

		default:
			n.logger.WithFields(logrus.Fields{
				"segment_type": unit.Type,
				"event_id":     ev.ID,
			}).Warn("Skipping unsupported QQ segment")
		}
	}

	return segments
}

func (n *Normalizer) mention(ctx context.Context, ev *onebot.Event, target string) models.Segment {
	if target == models.MentionAll {
		return models.MentionSegment(models.MentionAll, n.labels.Everyone)
	}

	userID, err := strconv.ParseInt(target, 10, 64)
	if err != nil || ev.GroupID == 0 || n.members == nil {
		return models.MentionSegment(target, "")
	}

	name, err := n.members.MemberName(ctx, ev.GroupID.Int64(), userID)
	if err != nil {
		n.logger.WithError(err).WithFields(logrus.Fields{
			"group_id": ev.GroupID,
			"user_id":  userID,
		}).Warn("Failed to look up mentioned member")
		return models.MentionSegment(target, "")
	}
	return models.MentionSegment(target, name)
}

func (n *Normalizer) fromQQFile(ev *onebot.Event) []models.Segment {
	return []models.Segment{models.FileSegment(ev.File.Name, ev.File.Size.Int64(), ev.File.URL)}
}

func (n *Normalizer) fromTelegram(ctx context.Context, ev *models.InboundEvent) []models.Segment {
	msg := ev.Telegram
	var segments []models.Segment

	if msg.ReplyToMessage != nil {
		raw := strconv.Itoa(msg.ReplyToMessage.MessageID)
		ref := models.MessageIdentity{Platform: models.PlatformTelegram, Scope: ev.Scope(), MessageID: raw}
		segments = append(segments, models.ReplySegment(n.resolveReply(ref, models.PlatformQQ), raw))
	}

	switch {
	case msg.Text != "":
		segments = append(segments, models.TextSegment(msg.Text))

	case msg.Sticker != nil:
		fileID := msg.Sticker.FileID
		if (msg.Sticker.IsAnimated || msg.Sticker.IsVideo) && msg.Sticker.Thumbnail != nil {
			fileID = msg.Sticker.Thumbnail.FileID
		}
		segments = n.appendFile(ctx, segments, fileID, models.ImageSegment)

	case len(msg.Photo) > 0:
		segments = n.appendFile(ctx, segments, msg.Photo[len(msg.Photo)-1].FileID, models.ImageSegment)

	case msg.Document != nil:
		segments = n.appendDocument(ctx, segments, msg.Document)

	case msg.Video != nil:
		segments = n.appendFile(ctx, segments, msg.Video.FileID, models.VideoSegment)

	case msg.Voice != nil:
		segments = append(segments, models.UnsupportedSegment("voice", n.labels.Voice))
	}

	if msg.Caption != "" {
		segments = append(segments, models.TextSegment(msg.Caption))
	}

	return segments
}

func (n *Normalizer) appendDocument(ctx context.Context, segments []models.Segment, doc *telego.Document) []models.Segment {
	switch {
	case strings.HasPrefix(doc.MimeType, "image/"):
		return n.appendFile(ctx, segments, doc.FileID, models.ImageSegment)
	case strings.HasPrefix(doc.MimeType, "video/"):
		return n.appendFile(ctx, segments, doc.FileID, models.VideoSegment)
	}
	n.logger.WithFields(logrus.Fields{
		"mime_type": doc.MimeType,
		"file_name": doc.FileName,
	}).Debug("Document type has no QQ counterpart")
	return append(segments, models.UnsupportedSegment("document", n.labels.Document))
}

func (n *Normalizer) appendFile(ctx context.Context, segments []models.Segment, fileID string, build func(string) models.Segment) []models.Segment {
	if n.files == nil {
		return segments
	}
	urls, err := n.store.FileURLs(ctx, fileID, n.files.ResolveFile)
	if err != nil {
		n.logger.WithError(err).WithField("file_id", fileID).Warn("Failed to resolve Telegram file")
		return segments
	}
	return append(segments, build(urls.Rewritten))
}

// resolveReply maps a referenced message to its counterpart on want. The
// reference may be an original the bridge forwarded, or a copy the bridge
// produced.
func (n *Normalizer) resolveReply(ref models.MessageIdentity, want models.Platform) *models.MessageIdentity {
	if target, ok := n.store.LookupTarget(ref); ok && target.Platform == want {
		return &target
	}
	if source, ok := n.store.LookupSource(ref); ok && source.Platform == want {
		return &source
	}
	n.logger.WithField("reply_to", ref.String()).Debug("Reply target has no counterpart")
	return nil
}

// TelegramDisplayName is how a Telegram sender is shown on the other side
func TelegramDisplayName(user *telego.User) string {
	if user == nil {
		return ""
	}
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = user.Username
	}
	return name
}
