package client

import (
	"jmapclient/internal/common/logger"
)

// Policy says what an operation does with a failure.
type Policy int

const (
	// PolicyPropagate returns every failure to the caller.
	PolicyPropagate Policy = iota
	// PolicyDegrade returns an empty result and logs a warning, unless the
	// failure is connection-fatal or Config.StrictReads is set.
	PolicyDegrade
)

func (p Policy) String() string {
	switch p {
	case PolicyDegrade:
		return "degrade"
	default:
		return "propagate"
	}
}

// OperationPolicies lists the failure policy of every read operation.
// Writes and single-object reads always propagate.
var OperationPolicies = map[string]Policy{
	"GetMailboxes":        PolicyDegrade,
	"GetAllMailboxes":     PolicyDegrade,
	"QueryEmails":         PolicyDegrade,
	"GetIdentities":       PolicyDegrade,
	"GetSubmissions":      PolicyDegrade,
	"GetSieveScripts":     PolicyDegrade,
	"GetAddressBooks":     PolicyDegrade,
	"QueryContacts":       PolicyDegrade,
	"GetCalendars":        PolicyDegrade,
	"QueryEvents":         PolicyDegrade,
	"FindMailboxByRole":   PolicyPropagate,
	"GetEmail":            PolicyPropagate,
	"GetThread":           PolicyPropagate,
	"GetVacationResponse": PolicyPropagate,
}

// PolicyFor returns the policy of an operation.
func PolicyFor(op string) Policy {
	return OperationPolicies[op]
}

// degrade applies the operation's policy to a read result.
func degrade[T any](c *Client, op string, v T, err error) (T, error) {
	if err == nil {
		return v, nil
	}
	if c.config.StrictReads || PolicyFor(op) != PolicyDegrade || mustPropagate(err) {
		return v, err
	}
	logger.LogWarn(c.logger, "Read failed, returning empty result", "operation", op, "error", err)
	var zero T
	return zero, nil
}
