package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/arnej/rmilter"
	"github.com/arnej/rmilter/internal/dnsbl"
	"github.com/arnej/rmilter/internal/greylist"
)

// checkTimeout bounds the external lookups done per protocol step.
const checkTimeout = 10 * time.Second

// filter is the per-connection handler: DNSBL at connect, greylisting per
// recipient, subject logging. Lookup failures never block mail; the step is
// answered with Continue and the failure logged.
type filter struct {
	rmilter.NoOpHandler

	logger   *slog.Logger
	dnsbl    *dnsbl.Checker
	greylist *greylist.Greylist

	clientAddr string
	sender     string
}

func newFilter(logger *slog.Logger, checker *dnsbl.Checker, grey *greylist.Greylist) *filter {
	return &filter{
		logger:   logger,
		dnsbl:    checker,
		greylist: grey,
	}
}

func (f *filter) Connection(hostname string, family rmilter.ProtocolFamily, port uint16, address string) (rmilter.Action, error) {
	f.clientAddr = address

	if f.dnsbl == nil || family == rmilter.FamilyUnix {
		return rmilter.ActionContinue, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	hits, err := f.dnsbl.Lookup(ctx, address)
	if err != nil {
		f.logger.Warn("dnsbl lookup failed", "address", address, "error", err)
		return rmilter.ActionContinue, nil
	}
	if len(hits) > 0 {
		f.logger.Info("client listed on dnsbl",
			"address", address,
			"hostname", hostname,
			"zones", hits)
		return rmilter.ActionReject, nil
	}
	return rmilter.ActionContinue, nil
}

func (f *filter) MailFrom(sender string, args []string) (rmilter.Action, error) {
	f.sender = sender
	return rmilter.ActionContinue, nil
}

func (f *filter) Recipient(recipient string, args []string) (rmilter.Action, error) {
	if f.greylist == nil || f.clientAddr == "" {
		return rmilter.ActionContinue, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	deferred, err := f.greylist.Check(ctx, f.clientAddr, f.sender, recipient)
	if err != nil {
		f.logger.Warn("greylist check failed", "error", err)
		return rmilter.ActionContinue, nil
	}
	if deferred {
		f.logger.Info("greylisting delivery attempt",
			"client", f.clientAddr,
			"sender", f.sender,
			"recipient", recipient)
		return rmilter.ActionTempfail, nil
	}
	return rmilter.ActionContinue, nil
}

func (f *filter) Header(name, value string) (rmilter.Action, error) {
	if strings.EqualFold(name, "Subject") {
		f.logger.Debug("message subject", "client", f.clientAddr, "subject", value)
	}
	return rmilter.ActionContinue, nil
}

func (f *filter) AbortFilterChecks() {
	f.sender = ""
}
