package messages

import "time"

const PackageRegisteredTopic = "package.registered"

// PackageRegistered is published once per created package. The label is
// rendered by the API and travels with the message so the notifier stays
// stateless.
type PackageRegistered struct {
	PackageID     string    `json:"package_id"`
	TrackingID    string    `json:"tracking_id"`
	SenderName    string    `json:"sender_name"`
	ReceiverName  string    `json:"receiver_name"`
	SenderEmail   string    `json:"sender_email"`
	ReceiverEmail string    `json:"receiver_email"`
	CreatedAt     time.Time `json:"created_at"`

	Attachment Attachment `json:"attachment"`
}

type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	// Data кодируется в base64 стандартным encoding/json.
	Data []byte `json:"data"`
}
