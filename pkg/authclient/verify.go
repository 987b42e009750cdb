package authclient

import (
	"context"
	"strings"
	"time"
)

// VerifyFlow consumes the token from a verification link. There are no
// fields to edit; a flow is built per token.
type VerifyFlow struct {
	// Delay postpones the request after Submit. Zero sends immediately.
	Delay time.Duration

	client *Client
	token  string
	m      machine[VerifyResponse]
}

func NewVerifyFlow(c *Client, token string) *VerifyFlow {
	return &VerifyFlow{client: c, token: strings.TrimSpace(token), m: machine[VerifyResponse]{phase: PhaseIdle}}
}

func (v *VerifyFlow) Phase() Phase {
	p, _, _ := v.m.current()
	return p
}

func (v *VerifyFlow) Err() *FormError {
	_, _, err := v.m.current()
	return err
}

func (v *VerifyFlow) Submit() (Transition[VerifyResponse], error) {
	var invalid []string
	if v.token == "" {
		invalid = append(invalid, FieldToken)
	}
	return v.m.submit(invalid)
}

func (v *VerifyFlow) Complete(ctx context.Context) (Transition[VerifyResponse], error) {
	return v.m.complete(ctx, v.Delay, func(ctx context.Context) (*VerifyResponse, string, error) {
		res, err := v.client.Verify(ctx, v.token)
		if err != nil {
			return nil, "", err
		}
		return res, res.Message, nil
	})
}

func (v *VerifyFlow) Run(ctx context.Context) ([]Transition[VerifyResponse], error) {
	return run(ctx, v.Submit, v.Complete)
}
