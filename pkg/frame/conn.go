// Package frame implements the encrypted, MAC-chained frame transport
// that carries all traffic after the handshake.
//
// Each frame is a 16-byte encrypted header (3-byte big-endian body
// size plus fixed header data), a 16-byte header MAC, the body
// encrypted and padded to the cipher block boundary, and a 16-byte
// body MAC. The MACs chain: every frame's MAC depends on the rolling
// Keccak state advanced by all prior frames in that direction, so
// frames must be processed strictly in the order they were sent.
package frame

import (
	"crypto/cipher"
	"fmt"
	"hash"
	"io"
	"sync"

	"github.com/pion/logging"

	"github.com/nodelink/p2phandshake/pkg/crypto"
	"github.com/nodelink/p2phandshake/pkg/handshake"
	"github.com/nodelink/p2phandshake/pkg/rlp"
)

const (
	// headerSize is the encrypted header length (one cipher block).
	headerSize = 16

	// macSize is the truncated MAC length per header and body.
	macSize = 16

	// maxFrameSize is the largest body the 3-byte length can carry.
	maxFrameSize = 1<<24 - 1
)

// headerData is the fixed remainder of the frame header after the
// body size. It encodes an empty capability/context list.
var headerData = []byte{0xC2, 0x80, 0x80}

// Conn turns a duplex byte stream into an encrypted frame transport
// using the secrets of a completed handshake. Reads and writes may
// run concurrently with each other; each direction is internally
// serialized to keep its rolling MAC state consistent.
type Conn struct {
	rw io.ReadWriter

	writeMu   sync.Mutex
	enc       cipher.Stream
	egressMAC hash.Hash

	readMu     sync.Mutex
	dec        cipher.Stream
	ingressMAC hash.Hash

	macCipher cipher.Block

	// failure latches the first unrecoverable error. Once a MAC check
	// fails the cipher and MAC states are out of step with the peer
	// for good.
	failMu  sync.Mutex
	failure error

	log logging.LeveledLogger
}

// Config configures a frame Conn.
type Config struct {
	// LoggerFactory creates the connection's logger. If nil, logging
	// is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewConn wraps rw with frame encryption using the given secrets.
// The Conn takes ownership of the secrets' cipher and MAC states.
func NewConn(rw io.ReadWriter, secrets *handshake.Secrets, config Config) (*Conn, error) {
	encCipher, err := crypto.NewCTRStream(secrets.AES, make([]byte, headerSize))
	if err != nil {
		return nil, err
	}
	// Separate keystreams per direction; both start from a zero IV,
	// which is safe because the key is unique to this session.
	decCipher, err := crypto.NewCTRStream(secrets.AES, make([]byte, headerSize))
	if err != nil {
		return nil, err
	}
	macCipher, err := crypto.NewAESBlock(secrets.MAC)
	if err != nil {
		return nil, err
	}

	c := &Conn{
		rw:         rw,
		enc:        encCipher,
		dec:        decCipher,
		macCipher:  macCipher,
		egressMAC:  secrets.EgressMAC,
		ingressMAC: secrets.IngressMAC,
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("frame")
	}
	return c, nil
}

// WriteFrame encrypts and sends one frame carrying the message code
// and payload, advancing the egress MAC state.
func (c *Conn) WriteFrame(code uint64, payload []byte) error {
	if err := c.failed(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ptype := rlp.EncodeUint64(code)
	fsize := len(ptype) + len(payload)
	if fsize > maxFrameSize {
		return ErrFrameTooLarge
	}

	// Header: body size, fixed header data, zero fill; encrypted in
	// place, then MAC'd.
	header := make([]byte, headerSize+macSize)
	putUint24(uint32(fsize), header)
	copy(header[3:], headerData)
	c.enc.XORKeyStream(header[:headerSize], header[:headerSize])
	copy(header[headerSize:], updateMAC(c.egressMAC, c.macCipher, header[:headerSize]))
	if _, err := c.rw.Write(header); err != nil {
		return err
	}

	// Body: plaintext padded to the block boundary, encrypted, MAC'd
	// over the ciphertext.
	padded := fsize
	if p := fsize % headerSize; p > 0 {
		padded += headerSize - p
	}
	body := make([]byte, padded)
	copy(body, ptype)
	copy(body[len(ptype):], payload)
	c.enc.XORKeyStream(body, body)
	c.egressMAC.Write(body)
	if _, err := c.rw.Write(body); err != nil {
		return err
	}

	fmacseed := c.egressMAC.Sum(nil)
	if _, err := c.rw.Write(updateMAC(c.egressMAC, c.macCipher, fmacseed)); err != nil {
		return err
	}

	if c.log != nil {
		c.log.Tracef("wrote frame code=%d size=%d", code, len(payload))
	}
	return nil
}

// ReadFrame receives, authenticates and decrypts one frame, advancing
// the ingress MAC state. A MAC mismatch poisons the connection: every
// later call fails immediately.
func (c *Conn) ReadFrame() (uint64, []byte, error) {
	if err := c.failed(); err != nil {
		return 0, nil, err
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()

	header := make([]byte, headerSize+macSize)
	if _, err := io.ReadFull(c.rw, header); err != nil {
		return 0, nil, err
	}
	shouldMAC := updateMAC(c.ingressMAC, c.macCipher, header[:headerSize])
	if !crypto.HMACEqual(shouldMAC, header[headerSize:]) {
		return 0, nil, c.fail(fmt.Errorf("%w: header", ErrMACMismatch))
	}
	c.dec.XORKeyStream(header[:headerSize], header[:headerSize])
	fsize := readUint24(header)

	padded := fsize
	if p := fsize % headerSize; p > 0 {
		padded += headerSize - p
	}
	body := make([]byte, padded)
	if _, err := io.ReadFull(c.rw, body); err != nil {
		return 0, nil, err
	}
	c.ingressMAC.Write(body)
	fmacseed := c.ingressMAC.Sum(nil)

	bodyMAC := make([]byte, macSize)
	if _, err := io.ReadFull(c.rw, bodyMAC); err != nil {
		return 0, nil, err
	}
	shouldMAC = updateMAC(c.ingressMAC, c.macCipher, fmacseed)
	if !crypto.HMACEqual(shouldMAC, bodyMAC) {
		return 0, nil, c.fail(fmt.Errorf("%w: body", ErrMACMismatch))
	}

	c.dec.XORKeyStream(body, body)
	code, payload, err := rlp.SplitUint64(body[:fsize])
	if err != nil {
		return 0, nil, c.fail(fmt.Errorf("%w: invalid message code: %v", ErrMalformedFrame, err))
	}

	if c.log != nil {
		c.log.Tracef("read frame code=%d size=%d", code, len(payload))
	}
	return code, payload, nil
}

// Close closes the underlying stream when it supports closing.
func (c *Conn) Close() error {
	if closer, ok := c.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// fail latches the first fatal error.
func (c *Conn) fail(err error) error {
	c.failMu.Lock()
	defer c.failMu.Unlock()
	if c.failure == nil {
		c.failure = err
		if c.log != nil {
			c.log.Warnf("connection failed: %v", err)
		}
	}
	return err
}

func (c *Conn) failed() error {
	c.failMu.Lock()
	defer c.failMu.Unlock()
	return c.failure
}

// updateMAC advances a rolling MAC state: the current digest is
// whitened with one AES block keyed by the MAC secret, XOR'd with the
// seed and fed back into the state. The first 16 bytes of the new
// digest are the frame's MAC.
func updateMAC(mac hash.Hash, block cipher.Block, seed []byte) []byte {
	aesbuf := make([]byte, block.BlockSize())
	block.Encrypt(aesbuf, mac.Sum(nil))
	for i := range aesbuf {
		aesbuf[i] ^= seed[i]
	}
	mac.Write(aesbuf)
	return mac.Sum(nil)[:macSize]
}

func readUint24(b []byte) int {
	return int(b[2]) | int(b[1])<<8 | int(b[0])<<16
}

func putUint24(v uint32, b []byte) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}
