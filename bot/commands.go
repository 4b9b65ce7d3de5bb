package bot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sa6mwa/ejreconcile/document"
)

// StateMutator is the seam the command dispatcher uses to apply a change
// and trigger a reconciliation cycle, without the bot package depending on
// the root module (which in turn depends on bot to run the admin account).
type StateMutator interface {
	Apply(ctx context.Context, reason string, f func(document.Document) document.Document) (ok bool, state document.Document, errs []string)
}

// commandPattern matches "bot <verb> [args]", tolerating extra leading
// whitespace and case.
var commandPattern = regexp.MustCompile(`(?i)^\s*bot\s+(\S+)(?:\s+(.*))?$`)

// Dispatcher answers chat commands sent to the admin account. Commands are
// gated to members of the owner group; anyone else is told the bot ignores
// them.
type Dispatcher struct {
	mutator StateMutator
	current func() (document.Document, error)
	send    func(ctx context.Context, to, body string) error
}

// NewDispatcher constructs a Dispatcher. current returns the latest
// document for status queries; send delivers a reply to the originating
// user.
func NewDispatcher(mutator StateMutator, current func() (document.Document, error), send func(ctx context.Context, to, body string) error) *Dispatcher {
	return &Dispatcher{mutator: mutator, current: current, send: send}
}

// Handle parses and executes a single incoming chat line from userID,
// replying over send. It is a no-op (and silent) if the line does not
// match the command grammar.
func (d *Dispatcher) Handle(ctx context.Context, userID, body string) {
	m := commandPattern.FindStringSubmatch(body)
	if m == nil {
		return
	}
	verb, rest := strings.ToLower(m[1]), strings.TrimSpace(m[2])

	doc, err := d.current()
	if err != nil {
		d.reply(ctx, userID, fmt.Sprintf("could not read current state: %v", err))
		return
	}
	member, managed := doc.MemberByUserID(userID)
	if !managed || !member.Groups.Contains(document.GroupOwner) {
		d.reply(ctx, userID, "sorry, only owners can do that")
		return
	}

	switch verb {
	case "status":
		d.handleStatus(ctx, userID, doc)
	case "create":
		d.handleCreate(ctx, userID, rest)
	case "login":
		d.handleLogin(ctx, userID, rest)
	default:
		d.reply(ctx, userID, fmt.Sprintf("unknown command %q", verb))
	}
}

func (d *Dispatcher) handleStatus(ctx context.Context, userID string, doc document.Document) {
	d.reply(ctx, userID, fmt.Sprintf(
		"tracking %d member(s), %d room(s), %d group(s)",
		len(doc.Tracking.ManagedMembers), len(doc.Tracking.ManagedRooms), len(doc.Tracking.ManagedGroups),
	))
}

func (d *Dispatcher) handleCreate(ctx context.Context, userID, rest string) {
	fields := strings.Fields(rest)
	if len(fields) < 2 || strings.ToLower(fields[0]) != "meet" {
		d.reply(ctx, userID, `usage: bot create meet <name>`)
		return
	}
	name := strings.Join(fields[1:], " ")

	ok, _, errs := d.mutator.Apply(ctx, "bot command: create meet "+name, func(doc document.Document) document.Document {
		doc.Rooms = append(doc.Rooms, document.Room{
			Name:    name,
			Members: document.NewGroupSet(document.GroupOwner),
			Admins:  document.NewGroupSet(document.GroupOwner),
		})
		return doc
	})
	if !ok {
		d.reply(ctx, userID, fmt.Sprintf("could not create %q: %s", name, strings.Join(errs, "; ")))
		return
	}
	d.reply(ctx, userID, fmt.Sprintf("created room %q", name))
}

func (d *Dispatcher) handleLogin(ctx context.Context, userID, rest string) {
	fields := strings.Fields(rest)
	if len(fields) != 2 || strings.ToLower(fields[1]) != "admin" {
		d.reply(ctx, userID, `usage: bot login user admin | bot login ej admin`)
		return
	}
	switch strings.ToLower(fields[0]) {
	case "user":
		d.reply(ctx, userID, "web console login: use your managed user-id and current password")
	case "ej":
		d.reply(ctx, userID, "ejabberd admin login: ask an operator for the admin console credentials")
	default:
		d.reply(ctx, userID, `usage: bot login user admin | bot login ej admin`)
	}
}

func (d *Dispatcher) reply(ctx context.Context, userID, text string) {
	if d.send == nil {
		return
	}
	_ = d.send(ctx, userID, text)
}
