package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"teamops/internal/domain"
	"teamops/internal/engine"
)

func TestSendMessageAndInbox(t *testing.T) {
	env := newTestEnv(t)
	var pre engine.PreconditionError
	if _, err := env.Engine.SendMessage(env.Ctx, engine.SendMessageOptions{Content: " ", ActorID: env.Member.ID}); !errors.As(err, &pre) {
		t.Fatalf("expected content precondition, got %v", err)
	}
	broadcast, err := env.Engine.SendMessage(env.Ctx, engine.SendMessageOptions{Content: "Standup moved", ActorID: env.Founder.ID})
	if err != nil {
		t.Fatal(err)
	}
	if broadcast.Kind != domain.MessageTeam || !broadcast.Broadcast() || broadcast.SenderName != "Boss" {
		t.Fatalf("unexpected broadcast %+v", broadcast)
	}
	direct, err := env.Engine.SendMessage(env.Ctx, engine.SendMessageOptions{RecipientID: env.Member.ID, Content: "Got a minute?", ActorID: env.Other.ID})
	if err != nil {
		t.Fatal(err)
	}
	if direct.Kind != domain.MessageDirect {
		t.Fatalf("expected direct kind, got %s", direct.Kind)
	}

	all, err := env.Engine.Inbox(env.Ctx, env.Member.ID, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected broadcast and direct, got %d", len(all))
	}
	founderDirect, _ := env.Engine.Inbox(env.Ctx, env.Founder.ID, domain.MessageDirect, 0)
	if len(founderDirect) != 0 {
		t.Fatalf("founder should not see the member's direct message")
	}
	if _, err := env.Engine.Inbox(env.Ctx, env.Member.ID, "spam", 0); !errors.As(err, &pre) {
		t.Fatalf("expected kind precondition, got %v", err)
	}
}

func TestMarkRead(t *testing.T) {
	env := newTestEnv(t)
	for _, content := range []string{"one", "two"} {
		if _, err := env.Engine.SendMessage(env.Ctx, engine.SendMessageOptions{RecipientID: env.Member.ID, Content: content, ActorID: env.Founder.ID}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := env.Engine.SendMessage(env.Ctx, engine.SendMessageOptions{Content: "mine", ActorID: env.Member.ID}); err != nil {
		t.Fatal(err)
	}
	n, err := env.Engine.MarkRead(env.Ctx, env.Member.ID, domain.MessageDirect)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 marked, got %d %v", n, err)
	}
	n, err = env.Engine.MarkRead(env.Ctx, env.Member.ID, domain.MessageTeam)
	if err != nil || n != 0 {
		t.Fatalf("own broadcast should not be marked, got %d %v", n, err)
	}
	inbox, _ := env.Engine.Inbox(env.Ctx, env.Member.ID, domain.MessageDirect, 0)
	for _, m := range inbox {
		if !m.IsRead {
			t.Fatalf("message %s still unread", m.ID)
		}
	}
}

type fakeDocs struct {
	err   error
	calls []string
}

func (f *fakeDocs) AppendEntry(_ context.Context, token, docID, text string, _ time.Time) error {
	f.calls = append(f.calls, token+"|"+docID+"|"+text)
	return f.err
}

type fakeTokens map[string]string

func (f fakeTokens) Token(profileID string) (string, error) {
	tok, ok := f[profileID]
	if !ok {
		return "", errors.New("credential not found")
	}
	return tok, nil
}

func (env testEnv) linkDoc(t *testing.T, profileID string) {
	t.Helper()
	doc := "doc-123"
	if _, err := env.Engine.UpdateProfile(env.Ctx, engine.ProfileUpdateOptions{GoogleDocID: &doc, ActorID: profileID}); err != nil {
		t.Fatal(err)
	}
}

func TestPostAccomplishmentShareAndSync(t *testing.T) {
	env := newTestEnv(t)
	docs := &fakeDocs{}
	env.Engine.Docs = docs
	env.Engine.Tokens = fakeTokens{env.Member.ID: "tok"}
	env.linkDoc(t, env.Member.ID)

	res, err := env.Engine.PostAccomplishment(env.Ctx, env.Member.ID, "Shipped onboarding", true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Warning != "" {
		t.Fatalf("unexpected warning %q", res.Warning)
	}
	if res.Message == nil || res.Message.Content != "Dana shared an accomplishment: Shipped onboarding" {
		t.Fatalf("unexpected share message %+v", res.Message)
	}
	if len(docs.calls) != 1 || docs.calls[0] != "tok|doc-123|Shipped onboarding" {
		t.Fatalf("unexpected doc calls %v", docs.calls)
	}
	list, err := env.Engine.ListAccomplishments(env.Ctx, env.Member.ID)
	if err != nil || len(list) != 1 || !list[0].PostedToTeam {
		t.Fatalf("unexpected list %+v %v", list, err)
	}
}

func TestPostAccomplishmentDocFailureIsWarning(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Docs = &fakeDocs{err: errors.New("token expired")}
	env.Engine.Tokens = fakeTokens{env.Member.ID: "stale"}
	env.linkDoc(t, env.Member.ID)

	res, err := env.Engine.PostAccomplishment(env.Ctx, env.Member.ID, "Closed ticket backlog", false)
	if err != nil {
		t.Fatalf("doc failure must not fail the post: %v", err)
	}
	if !strings.Contains(res.Warning, "token expired") {
		t.Fatalf("expected warning, got %q", res.Warning)
	}
	if res.Message != nil {
		t.Fatalf("unshared accomplishment should not broadcast")
	}
	list, _ := env.Engine.ListAccomplishments(env.Ctx, env.Member.ID)
	if len(list) != 1 {
		t.Fatalf("accomplishment should be saved, got %d", len(list))
	}
}

func TestPostAccomplishmentMissingToken(t *testing.T) {
	env := newTestEnv(t)
	docs := &fakeDocs{}
	env.Engine.Docs = docs
	env.Engine.Tokens = fakeTokens{}
	env.linkDoc(t, env.Member.ID)
	res, err := env.Engine.PostAccomplishment(env.Ctx, env.Member.ID, "Fixed build", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Warning == "" || len(docs.calls) != 0 {
		t.Fatalf("expected warning without doc call, got %q %v", res.Warning, docs.calls)
	}
}

func TestPostAccomplishmentWithoutDocSkipsSync(t *testing.T) {
	env := newTestEnv(t)
	docs := &fakeDocs{}
	env.Engine.Docs = docs
	res, err := env.Engine.PostAccomplishment(env.Ctx, env.Member.ID, "Wrote docs", false)
	if err != nil || res.Warning != "" || len(docs.calls) != 0 {
		t.Fatalf("unexpected result %+v %v %v", res, err, docs.calls)
	}
	var pre engine.PreconditionError
	if _, err := env.Engine.PostAccomplishment(env.Ctx, env.Member.ID, "", false); !errors.As(err, &pre) {
		t.Fatalf("expected text precondition, got %v", err)
	}
}

type failingStore struct {
	engine.AccomplishmentStore
}

func (f failingStore) Add(ctx context.Context, tx *sqlx.Tx, a domain.Accomplishment) error {
	if err := f.AccomplishmentStore.Add(ctx, tx, a); err != nil {
		return err
	}
	return errors.New("disk full")
}

func TestPostAccomplishmentIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Accomplishments = failingStore{AccomplishmentStore: env.Engine.Accomplishments}
	if _, err := env.Engine.PostAccomplishment(env.Ctx, env.Member.ID, "Half written", true); err == nil {
		t.Fatalf("expected store error")
	}
	list, err := env.Engine.Repo.ListAccomplishments(env.Ctx, env.Member.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("row leaked despite rollback: %+v", list)
	}
	team, _ := env.Engine.Inbox(env.Ctx, env.Other.ID, domain.MessageTeam, 0)
	if len(team) != 0 {
		t.Fatalf("broadcast leaked: %+v", team)
	}
}
