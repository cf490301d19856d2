package secrets

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/asn1"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"pdsinstall/pkg/shell"
)

// Source is a cryptographically secure origin of randomness and curve keys.
type Source interface {
	// RandomHex returns n random bytes as lowercase hex.
	RandomHex(ctx context.Context, n int) (string, error)
	// CurveKeyDER returns a fresh secp256k1 private key as SEC1 DER.
	CurveKeyDER(ctx context.Context) ([]byte, error)
}

// Native generates everything in-process.
type Native struct{}

func (Native) RandomHex(_ context.Context, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (Native) CurveKeyDER(context.Context) ([]byte, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	defer priv.Zero()
	return MarshalSEC1(priv.Serialize(), priv.PubKey().SerializeUncompressed())
}

// OpenSSL shells out to the openssl binary, as the upstream installer does.
type OpenSSL struct {
	Runner shell.Runner
}

func (o OpenSSL) RandomHex(ctx context.Context, n int) (string, error) {
	out, err := o.Runner.Run(ctx, "openssl", "rand", "--hex", fmt.Sprint(n))
	if err != nil {
		return "", err
	}
	s := strings.TrimSpace(string(out))
	if len(s) != 2*n || !isLowerHex(s) {
		return "", fmt.Errorf("openssl rand returned %d unexpected characters", len(s))
	}
	return s, nil
}

func (o OpenSSL) CurveKeyDER(ctx context.Context) ([]byte, error) {
	der, err := o.Runner.Run(ctx, "openssl", "ecparam", "--name", "secp256k1", "--genkey", "--noout", "--outform", "DER")
	if err != nil {
		return nil, err
	}
	if _, err := ParseSEC1(der); err != nil {
		return nil, fmt.Errorf("openssl ecparam output: %w", err)
	}
	return der, nil
}

// oidSecp256k1 is 1.3.132.0.10.
var oidSecp256k1 = asn1.ObjectIdentifier{1, 3, 132, 0, 10}

// MarshalSEC1 encodes an RFC 5915 ECPrivateKey with named-curve parameters
// and the uncompressed public key, matching openssl's DER output byte for byte.
func MarshalSEC1(scalar, uncompressedPub []byte) ([]byte, error) {
	if len(scalar) != ScalarLen {
		return nil, fmt.Errorf("scalar must be %d bytes, got %d", ScalarLen, len(scalar))
	}
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(1)
		b.AddASN1OctetString(scalar)
		b.AddASN1(cbasn1.Tag(0).Constructed().ContextSpecific(), func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(oidSecp256k1)
		})
		b.AddASN1(cbasn1.Tag(1).Constructed().ContextSpecific(), func(b *cryptobyte.Builder) {
			b.AddASN1BitString(uncompressedPub)
		})
	})
	return b.Bytes()
}

// ParseSEC1 reads the private scalar out of an ECPrivateKey structure and
// checks that the curve is secp256k1.
func ParseSEC1(der []byte) ([]byte, error) {
	input := cryptobyte.String(der)
	var (
		seq     cryptobyte.String
		version int
		scalar  []byte
	)
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, fmt.Errorf("malformed ECPrivateKey")
	}
	if !seq.ReadASN1Integer(&version) || version != 1 {
		return nil, fmt.Errorf("unsupported ECPrivateKey version")
	}
	if !seq.ReadASN1Bytes(&scalar, cbasn1.OCTET_STRING) || len(scalar) != ScalarLen {
		return nil, fmt.Errorf("malformed private scalar")
	}
	var params cryptobyte.String
	var hasParams bool
	if !seq.ReadOptionalASN1(&params, &hasParams, cbasn1.Tag(0).Constructed().ContextSpecific()) {
		return nil, fmt.Errorf("malformed curve parameters")
	}
	if hasParams {
		var oid asn1.ObjectIdentifier
		if !params.ReadASN1ObjectIdentifier(&oid) || !oid.Equal(oidSecp256k1) {
			return nil, fmt.Errorf("key is not on secp256k1")
		}
	}
	return scalar, nil
}

// derHeader is SEQUENCE(116) { INTEGER 1, OCTET STRING(32) ...
var derHeader = []byte{0x30, 0x74, 0x02, 0x01, 0x01, 0x04, 0x20}

// ScalarLen is the length of a secp256k1 private scalar.
const ScalarLen = 32

// ExtractScalar takes the 32 bytes that follow the fixed DER header.
func ExtractScalar(der []byte) ([]byte, error) {
	if len(der) < len(derHeader)+ScalarLen {
		return nil, fmt.Errorf("curve key too short: %d bytes", len(der))
	}
	if !bytes.Equal(der[:len(derHeader)], derHeader) {
		return nil, fmt.Errorf("unexpected curve key header % x", der[:len(derHeader)])
	}
	out := make([]byte, ScalarLen)
	copy(out, der[len(derHeader):len(derHeader)+ScalarLen])
	return out, nil
}

func isLowerHex(s string) bool {
	for _, c := range s {
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}
