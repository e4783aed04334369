package frame

import (
	"bytes"
	"errors"
	"net"
	"testing"

	"github.com/nodelink/p2phandshake/pkg/crypto"
	"github.com/nodelink/p2phandshake/pkg/handshake"
)

// connPair builds two Conns that share a set of secrets, wired
// through in-memory buffers so that whatever a writes, b reads.
func connPair(t *testing.T) (a, b *Conn, aOut *bytes.Buffer) {
	t.Helper()

	aesSecret := crypto.Keccak256([]byte("aes secret"))
	macSecret := crypto.Keccak256([]byte("mac secret"))

	egressA := crypto.NewKeccak256()
	egressA.Write([]byte("direction a to b"))
	ingressB := crypto.NewKeccak256()
	ingressB.Write([]byte("direction a to b"))
	egressB := crypto.NewKeccak256()
	egressB.Write([]byte("direction b to a"))
	ingressA := crypto.NewKeccak256()
	ingressA.Write([]byte("direction b to a"))

	// a writes into aOut and reads from bOut, b the other way round.
	aOut = new(bytes.Buffer)
	bOut := new(bytes.Buffer)

	aSecrets := &handshake.Secrets{AES: aesSecret, MAC: macSecret, EgressMAC: egressA, IngressMAC: ingressA}
	bSecrets := &handshake.Secrets{AES: aesSecret, MAC: macSecret, EgressMAC: egressB, IngressMAC: ingressB}

	var err error
	a, err = NewConn(&bufPipe{r: bOut, w: aOut}, aSecrets, Config{})
	if err != nil {
		t.Fatalf("NewConn: %v", err)
	}
	b, err = NewConn(&bufPipe{r: aOut, w: bOut}, bSecrets, Config{})
	if err != nil {
		t.Fatalf("NewConn: %v", err)
	}
	return a, b, aOut
}

type bufPipe struct {
	r *bytes.Buffer
	w *bytes.Buffer
}

func (p *bufPipe) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *bufPipe) Write(b []byte) (int, error) { return p.w.Write(b) }

func TestFrameRoundTrip(t *testing.T) {
	a, b, _ := connPair(t)

	sizes := []int{0, 1, 15, 16, 17, 255, 1000, 100000}
	for _, size := range sizes {
		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i)
		}
		if err := a.WriteFrame(42, payload); err != nil {
			t.Fatalf("WriteFrame(size=%d): %v", size, err)
		}
		code, got, err := b.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame(size=%d): %v", size, err)
		}
		if code != 42 {
			t.Fatalf("size=%d: code = %d, want 42", size, code)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("size=%d: payload mismatch", size)
		}
	}
}

func TestFrameOrdering(t *testing.T) {
	a, b, _ := connPair(t)

	for i := 0; i < 10; i++ {
		if err := a.WriteFrame(uint64(i), []byte{byte(i), byte(i), byte(i)}); err != nil {
			t.Fatalf("WriteFrame(%d): %v", i, err)
		}
	}
	for i := 0; i < 10; i++ {
		code, payload, err := b.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame(%d): %v", i, err)
		}
		if code != uint64(i) {
			t.Fatalf("frame %d: code = %d", i, code)
		}
		if !bytes.Equal(payload, []byte{byte(i), byte(i), byte(i)}) {
			t.Fatalf("frame %d: payload mismatch", i)
		}
	}
}

func TestFrameBidirectional(t *testing.T) {
	a, b, _ := connPair(t)

	if err := a.WriteFrame(1, []byte("ping")); err != nil {
		t.Fatal(err)
	}
	if err := b.WriteFrame(2, []byte("pong")); err != nil {
		t.Fatal(err)
	}
	if _, payload, err := b.ReadFrame(); err != nil || string(payload) != "ping" {
		t.Fatalf("b.ReadFrame() = %q, %v", payload, err)
	}
	if _, payload, err := a.ReadFrame(); err != nil || string(payload) != "pong" {
		t.Fatalf("a.ReadFrame() = %q, %v", payload, err)
	}
}

func TestFrameTamperDetected(t *testing.T) {
	// Flip one byte at every position of the wire image and make sure
	// the reader rejects the frame.
	a, _, aOut := connPair(t)
	if err := a.WriteFrame(7, []byte("payload under test")); err != nil {
		t.Fatal(err)
	}
	wire := append([]byte(nil), aOut.Bytes()...)

	for pos := 0; pos < len(wire); pos++ {
		_, b, _ := connPair(t)
		tampered := append([]byte(nil), wire...)
		tampered[pos] ^= 0x01
		b.rw = &bufPipe{r: bytes.NewBuffer(tampered), w: new(bytes.Buffer)}

		_, _, err := b.ReadFrame()
		if !errors.Is(err, ErrMACMismatch) {
			t.Fatalf("pos %d: ReadFrame() error = %v, want ErrMACMismatch", pos, err)
		}
	}
}

func TestFramePoisonedAfterMACFailure(t *testing.T) {
	a, _, aOut := connPair(t)
	if err := a.WriteFrame(7, []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := a.WriteFrame(7, []byte("second")); err != nil {
		t.Fatal(err)
	}
	wire := aOut.Bytes()
	wire[8] ^= 0xFF

	_, b, _ := connPair(t)
	b.rw = &bufPipe{r: bytes.NewBuffer(wire), w: new(bytes.Buffer)}

	if _, _, err := b.ReadFrame(); !errors.Is(err, ErrMACMismatch) {
		t.Fatalf("first ReadFrame() error = %v, want ErrMACMismatch", err)
	}
	// Both directions are dead after a MAC failure.
	if _, _, err := b.ReadFrame(); !errors.Is(err, ErrMACMismatch) {
		t.Fatalf("second ReadFrame() error = %v, want ErrMACMismatch", err)
	}
	if err := b.WriteFrame(1, []byte("x")); !errors.Is(err, ErrMACMismatch) {
		t.Fatalf("WriteFrame() error = %v, want ErrMACMismatch", err)
	}
}

func TestFrameTooLarge(t *testing.T) {
	a, _, _ := connPair(t)
	if err := a.WriteFrame(0, make([]byte, maxFrameSize)); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("WriteFrame() error = %v, want ErrFrameTooLarge", err)
	}
}

func TestFrameOverHandshakedPipe(t *testing.T) {
	// Full path: real handshake over net.Pipe, then frames in both
	// directions using the derived secrets.
	initKey, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	recKey, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	type result struct {
		secrets *handshake.Secrets
		err     error
	}
	initCh := make(chan result, 1)
	recCh := make(chan result, 1)
	go func() {
		s, err := handshake.RunInitiator(c1, initKey, recKey.PublicKey())
		initCh <- result{s, err}
	}()
	go func() {
		s, err := handshake.RunRecipient(c2, recKey)
		recCh <- result{s, err}
	}()
	initRes := <-initCh
	recRes := <-recCh
	if initRes.err != nil {
		t.Fatalf("initiator: %v", initRes.err)
	}
	if recRes.err != nil {
		t.Fatalf("recipient: %v", recRes.err)
	}

	a, err := NewConn(c1, initRes.secrets, Config{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewConn(c2, recRes.secrets, Config{})
	if err != nil {
		t.Fatal(err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.WriteFrame(0x10, []byte("hello over frames"))
	}()
	code, payload, err := b.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if code != 0x10 || string(payload) != "hello over frames" {
		t.Fatalf("got code=%d payload=%q", code, payload)
	}

	go func() {
		errCh <- b.WriteFrame(0x11, []byte("reply"))
	}()
	code, payload, err = a.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if code != 0x11 || string(payload) != "reply" {
		t.Fatalf("got code=%d payload=%q", code, payload)
	}
}
