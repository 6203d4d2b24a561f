package tiercache

// Codec turns values into the bytes kept by the disk tier and back.
// extra is stored next to data and returned unchanged.
type Codec[V any] interface {
	Encode(v V) (data, extra []byte, err error)
	Decode(data, extra []byte) (V, error)
}

// Coster returns the memory tier cost of a value, usually its size in bytes.
type Coster[V any] func(v V) uint64

// BytesCodec stores byte slices as is.
type BytesCodec struct{}

func (BytesCodec) Encode(v []byte) (data, extra []byte, err error) {
	return v, nil, nil
}

func (BytesCodec) Decode(data, _ []byte) ([]byte, error) {
	return data, nil
}

// BytesCost is a Coster which charges the length of the slice.
func BytesCost(v []byte) uint64 {
	return uint64(len(v))
}
