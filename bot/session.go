package bot

import (
	"context"
	"encoding/xml"

	"mellium.im/xmlstream"
	"mellium.im/xmpp"
	"mellium.im/xmpp/dial"
	"mellium.im/xmpp/jid"
	"mellium.im/xmpp/muc"
	"mellium.im/xmpp/mux"
	"mellium.im/sasl"
	"mellium.im/xmpp/stanza"

	"github.com/sa6mwa/ejreconcile/internal/loggingutil"
	"pkt.systems/pslog"
)

// xmppSession is the subset of a live XMPP connection the bot needs. It
// exists so reconnectLoop and the Notifier methods can be tested against
// a fake without dialing a real server.
type xmppSession interface {
	JoinMUC(ctx context.Context, room jid.JID) error
	SendMessage(ctx context.Context, to jid.JID, body string) error
	Close(ctx context.Context) error
}

// liveSession wraps a negotiated mellium session plus the MUC client
// multiplexed onto it.
//
// Establishing the session itself (dial.Client + xmpp.NewSession below) is
// the one piece of this module the reference material does not demonstrate
// end to end; everything else in this file (muc.Client.Join, the message
// Wrap/Send pattern) mirrors the MUC and room helpers directly. See
// DESIGN.md for the note on this gap.
type liveSession struct {
	session *xmpp.Session
	muc     *muc.Client
	logger  pslog.Logger
}

// chatMessageHandler satisfies mux.MessageHandler for incoming one-to-one
// chat stanzas, decoding the body and handing it to onMessage.
type chatMessageHandler struct {
	onMessage func(ctx context.Context, from, body string)
}

func (h chatMessageHandler) HandleMessage(p stanza.Message, r xmlstream.TokenReadEncoder) error {
	msg := struct {
		stanza.Message
		Body string `xml:"body"`
	}{}
	if err := xml.NewTokenDecoder(r).Decode(&msg); err != nil {
		return err
	}
	if h.onMessage != nil && msg.Body != "" {
		h.onMessage(context.Background(), p.From.Bare().String(), msg.Body)
	}
	return nil
}

// dialSession opens a TCP connection to the server for self's domain, as
// resolved by dial.Client (the bot's XMPPHost is not used), negotiates a client-to-server
// session for the given JID/password, and wires a mux that routes MUC
// presence/invites to the returned muc.Client and incoming chat messages to
// onMessage. registerHandlers lets the caller attach additional mux
// options (e.g. roster pushes) onto the same multiplexer.
func dialSession(ctx context.Context, self jid.JID, password string, logger pslog.Logger, onMessage func(ctx context.Context, from, body string), registerHandlers func(*muc.Client) []mux.Option) (*liveSession, error) {
	logger = loggingutil.EnsureLogger(logger).With("component", "bot.session")

	conn, err := dial.Client(ctx, "tcp", self)
	if err != nil {
		return nil, err
	}

	mucClient := &muc.Client{}
	opts := []mux.Option{
		muc.HandleClient(mucClient),
		mux.Message(stanza.ChatMessage, xml.Name{Local: "body"}, chatMessageHandler{onMessage: onMessage}),
	}
	if registerHandlers != nil {
		opts = append(opts, registerHandlers(mucClient)...)
	}
	handler := mux.New(opts...)

	s, err := xmpp.NewSession(
		ctx, self.Domain(), self, conn,
		xmpp.StartTLS,
		xmpp.SASL("", password, sasl.ScramSha256Plus, sasl.ScramSha1Plus, sasl.Plain),
		handler,
	)
	if err != nil {
		conn.Close()
		return nil, err
	}

	ls := &liveSession{session: s, muc: mucClient, logger: logger}
	go func() {
		if err := s.Serve(handler); err != nil {
			logger.Warn("bot.session.serve_exited", "error", err)
		}
	}()
	return ls, nil
}

func (s *liveSession) JoinMUC(ctx context.Context, room jid.JID) error {
	_, err := s.muc.Join(ctx, room, s.session)
	return err
}

func (s *liveSession) SendMessage(ctx context.Context, to jid.JID, body string) error {
	return s.session.Send(ctx, stanza.Message{
		To:   to,
		Type: stanza.ChatMessage,
	}.Wrap(xmlstream.Wrap(
		xmlstream.Token(xml.CharData(body)),
		xml.StartElement{Name: xml.Name{Local: "body"}},
	)))
}

func (s *liveSession) Close(ctx context.Context) error {
	return s.session.Close()
}
