// Package writer declares the configuration surface for journal file
// creation. No file is ever produced by this package: object allocation,
// hash-table insertion, and sealing are writer-side concerns out of scope
// for this reader-focused module.
package writer

import "github.com/appgate/journaldreader/journal/codec"

// Compression selects the payload compression a writer would apply to new
// Data objects above its size threshold.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionXz
	CompressionLz4
	CompressionZstd
)

// dataHashTableRotationFillLevel is the data hash table fill ratio at which
// a writer rotates; a reader never applies it, and CreateOptions does not
// carry it.
const dataHashTableRotationFillLevel = 0.75

// CreateOptions is the configuration a writer would consume to create a new
// journal file. A reader constructs and inspects these only to round-trip
// file metadata; it builds nothing from them.
type CreateOptions struct {
	MachineID codec.U128
	BootID    codec.U128
	Scope     string

	Seal bool

	Compact     bool
	Compression Compression

	DataHashTableCapacity  uint64
	FieldHashTableCapacity uint64
}

// NewCreateOptions returns the documented defaults: unsealed, compact,
// Zstd-compressed, a 2048-bucket data hash table and a 333-bucket field hash
// table.
func NewCreateOptions(machineID, bootID codec.U128, scope string) CreateOptions {
	return CreateOptions{
		MachineID:              machineID,
		BootID:                 bootID,
		Scope:                  scope,
		Seal:                   false,
		Compact:                true,
		Compression:            CompressionZstd,
		DataHashTableCapacity:  2048,
		FieldHashTableCapacity: 333,
	}
}

// WithSeal returns a copy of o with Seal set, enabling Forward Secure
// Sealing (Tag object emission) once a writer is implemented.
func (o CreateOptions) WithSeal(seal bool) CreateOptions {
	o.Seal = seal
	return o
}

// WithCompression returns a copy of o with Compression set.
func (o CreateOptions) WithCompression(c Compression) CreateOptions {
	o.Compression = c
	return o
}

// WithCompact returns a copy of o with Compact set.
func (o CreateOptions) WithCompact(compact bool) CreateOptions {
	o.Compact = compact
	return o
}
