package protocol

import "strings"

// NamespaceSeparator joins an account id and an object id. It is outside the
// JMAP id alphabet ([A-Za-z0-9_-]), so splitting on the first one is exact.
const NamespaceSeparator = ":"

// NamespaceID qualifies a raw object id with its account.
func NamespaceID(accountId, raw Id) Id {
	return accountId + NamespaceSeparator + raw
}

// SplitID undoes NamespaceID. ok is false for ids that were never namespaced.
func SplitID(id Id) (accountId, raw Id, ok bool) {
	a, r, found := strings.Cut(string(id), NamespaceSeparator)
	if !found || a == "" || r == "" {
		return "", id, false
	}
	return Id(a), Id(r), true
}

// Namespace maps ids of one account into the client's flat id space. Ids of
// the primary account pass through unchanged.
type Namespace struct {
	AccountId Id
	Primary   Id
}

// Active reports whether ids need rewriting.
func (n Namespace) Active() bool {
	return n.AccountId != "" && n.AccountId != n.Primary
}

// ID namespaces a single id.
func (n Namespace) ID(raw Id) Id {
	if !n.Active() || raw == "" {
		return raw
	}
	return NamespaceID(n.AccountId, raw)
}

// Set namespaces the keys of an id set such as Email.mailboxIds.
func (n Namespace) Set(m map[Id]bool) map[Id]bool {
	if !n.Active() || m == nil {
		return m
	}
	out := make(map[Id]bool, len(m))
	for k, v := range m {
		out[n.ID(k)] = v
	}
	return out
}

// Mailbox rewrites the mailbox id and parent id, recording the account and
// the raw id on the mailbox.
func (n Namespace) Mailbox(m *Mailbox) {
	m.AccountId = n.AccountId
	m.OriginalId = m.Id
	m.Id = n.ID(m.Id)
	if m.ParentId != nil {
		p := n.ID(*m.ParentId)
		m.ParentId = &p
	}
}

// Email rewrites the email, thread and mailbox ids.
func (n Namespace) Email(e *Email) {
	e.Id = n.ID(e.Id)
	e.ThreadId = n.ID(e.ThreadId)
	e.MailboxIds = n.Set(e.MailboxIds)
}

// ResolveID maps a client-side id back to (account, raw id). Ids that were
// not namespaced belong to fallback.
func ResolveID(id, fallback Id) (accountId, raw Id) {
	if a, r, ok := SplitID(id); ok {
		return a, r
	}
	return fallback, id
}
