package serialization

import (
	"encoding/binary"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"
)

// WriteElement writes the little-endian representation of element to w.
// The byte layout feeds consensus-visible hashes, so the set of supported
// types is deliberately closed.
func WriteElement(w io.Writer, element interface{}) error {
	var scratch [8]byte

	switch e := element.(type) {
	case uint8:
		scratch[0] = e
		_, err := w.Write(scratch[0:1])
		return errors.WithStack(err)

	case uint32:
		binary.LittleEndian.PutUint32(scratch[0:4], e)
		_, err := w.Write(scratch[0:4])
		return errors.WithStack(err)

	case int64:
		binary.LittleEndian.PutUint64(scratch[0:8], uint64(e))
		_, err := w.Write(scratch[0:8])
		return errors.WithStack(err)

	case uint64:
		binary.LittleEndian.PutUint64(scratch[0:8], e)
		_, err := w.Write(scratch[0:8])
		return errors.WithStack(err)

	case bool:
		if e {
			scratch[0] = 0x01
		} else {
			scratch[0] = 0x00
		}
		_, err := w.Write(scratch[0:1])
		return errors.WithStack(err)

	case *chainhash.Hash:
		_, err := w.Write(e[:])
		return errors.WithStack(err)

	case chainhash.Hash:
		_, err := w.Write(e[:])
		return errors.WithStack(err)
	}

	return errors.Errorf("unsupported element type %T", element)
}

// WriteElements writes multiple elements to w via WriteElement.
func WriteElements(w io.Writer, elements ...interface{}) error {
	for _, element := range elements {
		if err := WriteElement(w, element); err != nil {
			return err
		}
	}
	return nil
}

// ReadElement reads the little-endian representation of the pointed-to
// element from r.
func ReadElement(r io.Reader, element interface{}) error {
	var scratch [8]byte

	switch e := element.(type) {
	case *uint8:
		if _, err := io.ReadFull(r, scratch[0:1]); err != nil {
			return errors.WithStack(err)
		}
		*e = scratch[0]
		return nil

	case *uint32:
		if _, err := io.ReadFull(r, scratch[0:4]); err != nil {
			return errors.WithStack(err)
		}
		*e = binary.LittleEndian.Uint32(scratch[0:4])
		return nil

	case *int64:
		if _, err := io.ReadFull(r, scratch[0:8]); err != nil {
			return errors.WithStack(err)
		}
		*e = int64(binary.LittleEndian.Uint64(scratch[0:8]))
		return nil

	case *uint64:
		if _, err := io.ReadFull(r, scratch[0:8]); err != nil {
			return errors.WithStack(err)
		}
		*e = binary.LittleEndian.Uint64(scratch[0:8])
		return nil

	case *bool:
		if _, err := io.ReadFull(r, scratch[0:1]); err != nil {
			return errors.WithStack(err)
		}
		*e = scratch[0] != 0x00
		return nil

	case *chainhash.Hash:
		if _, err := io.ReadFull(r, e[:]); err != nil {
			return errors.WithStack(err)
		}
		return nil
	}

	return errors.Errorf("unsupported element type %T", element)
}

// ReadElements reads multiple elements from r via ReadElement.
func ReadElements(r io.Reader, elements ...interface{}) error {
	for _, element := range elements {
		if err := ReadElement(r, element); err != nil {
			return err
		}
	}
	return nil
}
