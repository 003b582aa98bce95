package model

// InboundMessage is one notification from the transport, flattened to the
// fields the pipeline cares about. Text extraction happens downstream:
// the first non-empty field wins, in the order Conversation, ExtendedText,
// ImageCaption, VideoCaption.
type InboundMessage struct {
	SenderID     string
	FromSelf     bool
	Conversation string
	ExtendedText string
	ImageCaption string
	VideoCaption string
}

// ExtractText returns the message text by priority, or "" when the message
// carries no usable text (media without caption, reactions, receipts).
func (m InboundMessage) ExtractText() string {
	for _, candidate := range []string{m.Conversation, m.ExtendedText, m.ImageCaption, m.VideoCaption} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}
