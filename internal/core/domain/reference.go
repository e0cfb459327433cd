package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const referencePrefix = "user_"

// DepositReference builds the external reference attached to a deposit
// request: user_<accountID>_<unix seconds>. The provider echoes it back on
// the payment notification.
func DepositReference(accountID uuid.UUID, at time.Time) string {
	return referencePrefix + accountID.String() + "_" + strconv.FormatInt(at.Unix(), 10)
}

// ParseDepositReference extracts the account id from a user_<accountID>_...
// reference. The suffix after the id is not interpreted.
func ParseDepositReference(ref string) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(ref), referencePrefix)
	if !ok {
		return uuid.Nil, false
	}
	idPart, _, _ := strings.Cut(rest, "_")
	id, err := uuid.Parse(idPart)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
