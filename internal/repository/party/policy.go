package party

import (
	"time"

	"github.com/google/uuid"
	"github.com/sharetube/party/pkg/randstr"
)

// CodeAlphabet leaves out characters that are easy to confuse when typed (0/O, 1/I).
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const maxCodeAttempts = 16

type Policy struct {
	PartyTTL      time.Duration
	MemberTimeout time.Duration
	ChatLimit     int
	CodeLength    int
}

func DefaultPolicy() Policy {
	return Policy{
		PartyTTL:      2 * time.Hour,
		MemberTimeout: 30 * time.Second,
		ChatLimit:     100,
		CodeLength:    6,
	}
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

// Core holds what every store implementation shares: policy, clock and id generation.
type Core struct {
	Policy Policy
	Now    func() time.Time
	Codes  iGenerator
	NewID  func() string
}

func NewCore(policy Policy) Core {
	return Core{
		Policy: policy,
		Now:    time.Now,
		Codes:  randstr.New([]byte(CodeAlphabet)),
		NewID:  uuid.NewString,
	}
}

// GenerateCode draws codes until taken reports one as free.
func (c Core) GenerateCode(taken func(code string) (bool, error)) (string, error) {
	for n := 0; n < maxCodeAttempts; n++ {
		code := c.Codes.GenerateRandomString(c.Policy.CodeLength)
		exists, err := taken(code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}

	return "", ErrCodeSpaceExhausted
}
