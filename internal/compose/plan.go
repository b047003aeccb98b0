// Package compose decides how normalized content is split into sends and
// renders each send in the target platform's native format.
package compose

import (
	"strings"

	"qtbridge/internal/models"
)

// Plan splits segments into the sends needed for one inbound message.
//
// Targets that cannot inline images get one send per image, in order,
// followed by a single send with everything else. The resolved reply, if
// any, is attached to that last send. A file share is always a send of its
// own. An empty result means there is nothing to forward.
func Plan(scope models.Scope, sender string, segments []models.Segment, caps models.Capabilities) []models.OutboundMessage {
	var (
		replyTo *models.MessageIdentity
		images  []models.Segment
		files   []models.Segment
		body    []models.Segment
	)

	for _, seg := range segments {
		switch seg.Kind {
		case models.SegmentReply:
			if seg.Reply != nil && replyTo == nil {
				r := *seg.Reply
				replyTo = &r
			}
		case models.SegmentImage:
			if caps.InlineImages {
				body = append(body, seg)
			} else {
				images = append(images, seg)
			}
		case models.SegmentFile:
			files = append(files, seg)
		case models.SegmentText:
			if strings.TrimSpace(seg.Text) != "" {
				body = append(body, seg)
			}
		default:
			body = append(body, seg)
		}
	}

	plan := make([]models.OutboundMessage, 0, len(images)+len(files)+1)
	for _, img := range images {
		plan = append(plan, models.OutboundMessage{
			Scope:      scope,
			SenderName: sender,
			Segments:   []models.Segment{img},
		})
	}
	for _, f := range files {
		plan = append(plan, models.OutboundMessage{
			Scope:      scope,
			SenderName: sender,
			Segments:   []models.Segment{f},
		})
	}
	if len(body) > 0 {
		plan = append(plan, models.OutboundMessage{
			Scope:      scope,
			SenderName: sender,
			Segments:   body,
			ReplyTo:    replyTo,
		})
	}
	return plan
}
