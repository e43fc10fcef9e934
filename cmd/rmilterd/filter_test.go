package main

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/arnej/rmilter"
	"github.com/arnej/rmilter/internal/greylist"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFilterWithoutChecksContinues(t *testing.T) {
	f := newFilter(testLogger(), nil, nil)

	act, err := f.Connection("mail.example.org", rmilter.FamilyInet, 2539, "192.168.0.1")
	if err != nil || act != rmilter.ActionContinue {
		t.Fatalf("connection: %v %v", act, err)
	}
	act, err = f.Recipient("<to@example.org>", nil)
	if err != nil || act != rmilter.ActionContinue {
		t.Fatalf("recipient: %v %v", act, err)
	}
}

func TestFilterGreylistsNewTuple(t *testing.T) {
	srv := miniredis.RunT(t)
	grey := greylist.New(srv.Addr(), 5*time.Minute, 24*time.Hour)
	defer grey.Close()

	f := newFilter(testLogger(), nil, grey)
	if _, err := f.Connection("mail.example.org", rmilter.FamilyInet, 2539, "192.168.0.1"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.MailFrom("<from@example.org>", nil); err != nil {
		t.Fatal(err)
	}

	act, err := f.Recipient("<to@example.org>", nil)
	if err != nil {
		t.Fatal(err)
	}
	if act != rmilter.ActionTempfail {
		t.Fatal("first attempt not tempfailed:", act)
	}

	// Retrying immediately is still within the delay.
	act, err = f.Recipient("<to@example.org>", nil)
	if err != nil {
		t.Fatal(err)
	}
	if act != rmilter.ActionTempfail {
		t.Fatal("retry within delay not tempfailed:", act)
	}
}

func TestFilterGreylistFailsOpen(t *testing.T) {
	srv := miniredis.RunT(t)
	grey := greylist.New(srv.Addr(), 5*time.Minute, 24*time.Hour)
	defer grey.Close()
	srv.Close() // redis gone: checks must not block mail

	f := newFilter(testLogger(), nil, grey)
	if _, err := f.Connection("mail.example.org", rmilter.FamilyInet, 2539, "192.168.0.1"); err != nil {
		t.Fatal(err)
	}

	act, err := f.Recipient("<to@example.org>", nil)
	if err != nil {
		t.Fatal(err)
	}
	if act != rmilter.ActionContinue {
		t.Fatal("greylist outage did not fail open:", act)
	}
}

func TestFilterSkipsGreylistBeforeConnection(t *testing.T) {
	srv := miniredis.RunT(t)
	grey := greylist.New(srv.Addr(), 5*time.Minute, 24*time.Hour)
	defer grey.Close()

	// No connection information seen: no tuple to record.
	f := newFilter(testLogger(), nil, grey)
	act, err := f.Recipient("<to@example.org>", nil)
	if err != nil || act != rmilter.ActionContinue {
		t.Fatalf("got %v %v", act, err)
	}
}

func TestFilterAbortResetsSender(t *testing.T) {
	f := newFilter(testLogger(), nil, nil)
	if _, err := f.MailFrom("<from@example.org>", nil); err != nil {
		t.Fatal(err)
	}
	f.AbortFilterChecks()
	if f.sender != "" {
		t.Fatal("sender survived abort:", f.sender)
	}
}
