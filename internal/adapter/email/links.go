package email

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"

	"github.com/Strob0t/answerdesk/internal/domain/approval"
)

// LinkSigner signs and verifies one-click decision links.
type LinkSigner struct {
	secret []byte
}

// NewLinkSigner creates a signer with the given secret.
func NewLinkSigner(secret string) *LinkSigner {
	return &LinkSigner{secret: []byte(secret)}
}

func (s *LinkSigner) sign(answerID string, d approval.Decision, by string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(answerID + "\n" + string(d) + "\n" + by))
	return hex.EncodeToString(mac.Sum(nil))
}

// URL returns the decision link for recipient by.
func (s *LinkSigner) URL(publicURL, answerID string, d approval.Decision, by string) string {
	q := url.Values{}
	q.Set("decision", string(d))
	q.Set("by", by)
	q.Set("sig", s.sign(answerID, d, by))
	return publicURL + "/api/v1/approvals/" + url.PathEscape(answerID) + "/email-decision?" + q.Encode()
}

// Verify reports whether sig was issued for this answer, decision and recipient.
func (s *LinkSigner) Verify(answerID string, d approval.Decision, by, sig string) bool {
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	got, _ := hex.DecodeString(s.sign(answerID, d, by))
	return hmac.Equal(want, got)
}
