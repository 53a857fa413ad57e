package domain

// EncryptedField is one sensitive attribute at rest: AEAD ciphertext plus
// the per-operation nonce. The label identifying the DEK generation is not
// stored here; all fields of one owning record share a single enc_label
// column on the record.
type EncryptedField struct {
	Ciphertext []byte
	Nonce      []byte
}

// WrappedDEK is the output of a wrap backend: everything that must be
// persisted on the key row to unwrap the DEK later.
type WrappedDEK struct {
	Ciphertext []byte
	Nonce      []byte
	Scheme     WrapScheme
	KMSKeyID   string
}

// EncryptedRecord is implemented by entities that carry encrypted fields.
// All sensitive fields of one record are encrypted under the single DEK
// generation named by its label.
type EncryptedRecord interface {
	EncLabel() string
	SetEncLabel(label string)
}
