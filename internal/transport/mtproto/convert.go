package mtproto

import (
	"github.com/gotd/td/tg"

	"relaybot/internal/media"
)

// fileInfo extracts MIME type and duration from a document attachment.
// Photos, webpages and other media kinds carry no file worth relaying.
func fileInfo(m *tg.Message) *media.FileInfo {
	docMedia, ok := m.Media.(*tg.MessageMediaDocument)
	if !ok || docMedia.Document == nil {
		return nil
	}
	doc, ok := docMedia.Document.AsNotEmpty()
	if !ok {
		return nil
	}

	fi := &media.FileInfo{MIMEType: doc.MimeType}
	for _, attr := range doc.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeAudio:
			fi.Duration = media.Seconds(float64(a.Duration))
		case *tg.DocumentAttributeVideo:
			// Round videos carry both; the audio attribute wins.
			if fi.Duration == nil {
				fi.Duration = media.Seconds(a.Duration)
			}
		}
	}
	return fi
}
