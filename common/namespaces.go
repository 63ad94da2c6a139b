package common

// XML namespaces used on the wire.
const (
	NSClient      = "jabber:client"
	NSStreams     = "http://etherx.jabber.org/streams"
	NSCommands    = "http://jabber.org/protocol/commands"
	NSDataForms   = "jabber:x:data"
	NSDiscoItems  = "http://jabber.org/protocol/disco#items"
	NSVersion     = "jabber:iq:version"
	NSStanzas     = "urn:ietf:params:xml:ns:xmpp-stanzas"
	NSPubsubEvent = "http://jabber.org/protocol/pubsub#event"
)

// Stanza and IQ type names.
const (
	StanzaIQ       = "iq"
	StanzaMessage  = "message"
	StanzaPresence = "presence"

	IQTypeGet    = "get"
	IQTypeSet    = "set"
	IQTypeResult = "result"
	IQTypeError  = "error"
)
