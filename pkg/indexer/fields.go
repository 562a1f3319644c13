package indexer

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/moonsong-labs/fisherman/pkg/types"
)

// fields.go adapts an Event's loosely-typed Data map (keyed by SCALE field
// name) to the fixed-width types the store expects. Byte fields arrive over
// the wire as "0x"-prefixed hex strings, the same convention go-substrate-
// rpc-client uses for hashes and accounts — json.Unmarshal into map[string]any
// never reconstructs a []byte, so every byte-shaped field is decoded here
// rather than type-asserted. A field absent or malformed yields the zero
// value rather than a panic: handlers that need a field present surface that
// as a downstream store constraint violation instead of crashing the
// indexer loop.

func decodeHex(v any) []byte {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

func fieldBytes32(ev types.Event, key string) [32]byte {
	v, _ := fieldBytes32OK(ev, key)
	return v
}

func fieldBytes32OK(ev types.Event, key string) ([32]byte, bool) {
	var out [32]byte
	b := decodeHex(ev.Data[key])
	if len(b) != 32 {
		return out, false
	}
	copy(out[:], b)
	return out, true
}

func fieldBytes32AsProvider(ev types.Event, key string) types.ProviderID {
	return types.ProviderID(fieldBytes32(ev, key))
}

func fieldBytes32List(ev types.Event, key string) []types.FileKey {
	raw, ok := ev.Data[key].([]any)
	if !ok {
		return nil
	}
	out := make([]types.FileKey, 0, len(raw))
	for _, item := range raw {
		b := decodeHex(item)
		if len(b) != 32 {
			continue
		}
		var fk types.FileKey
		copy(fk[:], b)
		out = append(out, fk)
	}
	return out
}

func fieldBytes20(ev types.Event, key string) [20]byte {
	var out [20]byte
	b := decodeHex(ev.Data[key])
	if len(b) != 20 {
		return out
	}
	copy(out[:], b)
	return out
}

func fieldString(ev types.Event, key string) string {
	s, _ := ev.Data[key].(string)
	return s
}

func fieldUint64(ev types.Event, key string) uint64 {
	switch v := ev.Data[key].(type) {
	case float64:
		return uint64(v)
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func fieldBytesSlice(ev types.Event, key string) []byte {
	return decodeHex(ev.Data[key])
}
