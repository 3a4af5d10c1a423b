package rcon

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Wire framing: little-endian 32-bit payload length, 32-bit request id
// (echoed back for correlation), 32-bit message type, UTF-8 payload, two
// trailing NUL bytes.
const (
	typeResponse     = 0
	typeCommand      = 2
	typeAuthResponse = 2
	typeLogin        = 3
)

// Payload cap; responses past this are malformed or hostile.
const maxPayload = 1 << 20

func writeFrame(w io.Writer, id, typ int32, payload string) error {
	n := 4 + 4 + len(payload) + 2
	buf := make([]byte, 4+n)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(n))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(id))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(typ))
	copy(buf[12:], payload)
	// Two trailing NULs already zeroed by make.
	_, err := w.Write(buf)
	return err
}

func readFrame(r io.Reader) (id, typ int32, payload string, err error) {
	var head [4]byte
	if _, err = io.ReadFull(r, head[:]); err != nil {
		return 0, 0, "", err
	}
	n := binary.LittleEndian.Uint32(head[:])
	if n < 10 || n > maxPayload {
		return 0, 0, "", fmt.Errorf("bad frame length %d", n)
	}
	body := make([]byte, n)
	if _, err = io.ReadFull(r, body); err != nil {
		return 0, 0, "", err
	}
	id = int32(binary.LittleEndian.Uint32(body[0:4]))
	typ = int32(binary.LittleEndian.Uint32(body[4:8]))
	payload = string(body[8 : n-2])
	return id, typ, payload, nil
}
