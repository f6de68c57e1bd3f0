package anchor

// AnchorBlock binds an attachment's content digest to a price observation and
// a caller-declared predecessor. Field order is hashed and must not change.
type AnchorBlock struct {
	Timestamp      string `json:"timestamp"`
	PrevHash       string `json:"prev_hash"`
	ImageSHA256    string `json:"image_sha256"`
	BTCUSDAnchor   string `json:"btc_usd_anchor"`
	AttachmentPath string `json:"attachment_path"`
}

type UploadResult struct {
	MerkleRoot     string `json:"merkle_root"`
	AttachmentPath string `json:"attachment_path"`
}

type VerifyStatus string

const (
	StatusVerified           VerifyStatus = "verified"
	StatusHashMismatch       VerifyStatus = "hash_mismatch"
	StatusBlockNotFound      VerifyStatus = "block_not_found"
	StatusAttachmentNotFound VerifyStatus = "attachment_not_found"
)

type VerifyResult struct {
	Success        bool         `json:"success"`
	Message        string       `json:"message"`
	Status         VerifyStatus `json:"status"`
	Block          *AnchorBlock `json:"block"`
	RecomputedHash string       `json:"recomputed_hash"`
}

func blockKey(merkleRoot string) string {
	return "blocks/" + merkleRoot + ".json"
}
