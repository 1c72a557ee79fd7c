package wire

import (
	"encoding/base64"
	"encoding/json"
)

// B64 encodes b with standard, padded base64, per spec.md §3/§6.1.
func B64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// B64Decode decodes a standard, padded base64 string, returning
// ErrBase64DecodeFailed on malformed input.
func B64Decode(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrBase64DecodeFailed.WithDetail(err)
	}
	return b, nil
}

// B64DecodeLen decodes s and requires the result to be exactly wantLen
// bytes, returning ErrInvalidKeyLength otherwise. Most wire fields are
// fixed-length keys, nonces, or signatures, and every caller needs this
// check immediately after decoding.
func B64DecodeLen(s string, wantLen int) ([]byte, error) {
	b, err := B64Decode(s)
	if err != nil {
		return nil, err
	}
	if len(b) != wantLen {
		return nil, ErrInvalidKeyLength.WithDetail(
			errLenMismatch(wantLen, len(b)))
	}
	return b, nil
}

type lenMismatch struct{ want, got int }

func (e lenMismatch) Error() string {
	return "expected " + itoa(e.want) + " bytes, got " + itoa(e.got)
}

func errLenMismatch(want, got int) error { return lenMismatch{want, got} }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// PublicIdentity is the dmesh-id wire shape (spec.md §3, §6.1).
type PublicIdentity struct {
	V         int    `json:"v"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Fp        string `json:"fp"`
	SigningPK string `json:"signPK"`
	BoxPK     string `json:"boxPK"`
}

const KindIdentity = "dmesh-id"

// NewPublicIdentity builds (without serializing) the public identity document a
// party shares out of band (clipboard, QR, file — see the transport
// package) to introduce itself to a peer.
func NewPublicIdentity(name string, fp, signingPK, boxPK []byte) *PublicIdentity {
	return &PublicIdentity{
		V: 1, Kind: KindIdentity, Name: name,
		Fp: B64(fp), SigningPK: B64(signingPK), BoxPK: B64(boxPK),
	}
}

func (id *PublicIdentity) MarshalCanonical() ([]byte, error) { return json.Marshal(id) }

func ParsePublicIdentity(data []byte) (*PublicIdentity, error) {
	var id PublicIdentity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, ErrJsonParseFailed.WithDetail(err)
	}
	if id.V != 1 || id.Kind != KindIdentity {
		return nil, ErrInvalidMessageFormat
	}
	return &id, nil
}

// MessageEnvelope is the dmesh-msg wire shape (spec.md §3, §6.1). msg_id
// and exp are optional for v1.0 wire compatibility; implementations MUST
// accept their absence and validate them when present.
type MessageEnvelope struct {
	V                int    `json:"v"`
	Kind             string `json:"kind"`
	MsgID            string `json:"msgId,omitempty"`
	Ts               int64  `json:"ts"`
	Exp              int64  `json:"exp,omitempty"`
	SenderSignPK     string `json:"senderSignPK"`
	SenderBoxPK      string `json:"senderBoxPK"`
	RecipientBoxPK   string `json:"recipientBoxPK"`
	EphPK            string `json:"ephPK"`
	Nonce            string `json:"nonce"`
	Ciphertext       string `json:"ciphertext"`
	Signature        string `json:"signature"`
}

const KindMessage = "dmesh-msg"

func (e *MessageEnvelope) MarshalCanonical() ([]byte, error) { return json.Marshal(e) }

func ParseMessageEnvelope(data []byte) (*MessageEnvelope, error) {
	var e MessageEnvelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, ErrJsonParseFailed.WithDetail(err)
	}
	return &e, nil
}

// Chunk is the dmesh-chunk wire shape (spec.md §3, §4.3, §6.1).
type Chunk struct {
	V     int    `json:"v"`
	Kind  string `json:"kind"`
	MsgID string `json:"msgId"`
	Seq   int    `json:"seq"`
	Total int    `json:"total"`
	Data  string `json:"data"`
}

const KindChunk = "dmesh-chunk"

func (c *Chunk) MarshalCanonical() ([]byte, error) { return json.Marshal(c) }

func ParseChunk(data []byte) (*Chunk, error) {
	var c Chunk
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, ErrJsonParseFailed.WithDetail(err)
	}
	if c.V != 1 || c.Kind != KindChunk {
		return nil, ErrInvalidMessageFormat
	}
	return &c, nil
}

// Payload is the plaintext JSON sealed inside MessageEnvelope.Ciphertext
// (spec.md §4.2 step 4, §6.1). Extra fields for the type-specific payload
// variants are carried in Extra and flattened on marshal.
type Payload struct {
	V       int                    `json:"v"`
	Ts      int64                  `json:"ts"`
	Type    string                 `json:"type"`
	Content string                 `json:"content"`
	Extra   map[string]interface{} `json:"-"`
}

const (
	PayloadText        = "text"
	PayloadImSafe      = "im_safe"
	PayloadNeedHelp    = "need_help"
	PayloadShelterInfo = "shelter_info"
	PayloadMedical     = "medical"
	PayloadSupplies    = "supplies"
	PayloadAck         = "ack"
)

func (p *Payload) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(p.Extra)+4)
	for k, v := range p.Extra {
		m[k] = v
	}
	m["v"] = p.V
	m["ts"] = p.Ts
	m["type"] = p.Type
	m["content"] = p.Content
	return json.Marshal(m)
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if v, ok := m["v"].(float64); ok {
		p.V = int(v)
	}
	if ts, ok := m["ts"].(float64); ok {
		p.Ts = int64(ts)
	}
	if t, ok := m["type"].(string); ok {
		p.Type = t
	}
	if c, ok := m["content"].(string); ok {
		p.Content = c
	}
	p.Extra = make(map[string]interface{})
	for k, v := range m {
		switch k {
		case "v", "ts", "type", "content":
		default:
			p.Extra[k] = v
		}
	}
	return nil
}
