package xmpp

import "strings"

// bareJID strips the resource: "room@conf/nick" → "room@conf".
func bareJID(jid string) string {
	if i := strings.IndexByte(jid, '/'); i >= 0 {
		return jid[:i]
	}
	return jid
}

// resource returns the part after the first "/", or "".
func resource(jid string) string {
	if i := strings.IndexByte(jid, '/'); i >= 0 {
		return jid[i+1:]
	}
	return ""
}

// domain returns the domain part of a JID.
func domain(jid string) string {
	bare := bareJID(jid)
	if i := strings.IndexByte(bare, '@'); i >= 0 {
		return bare[i+1:]
	}
	return bare
}
