// Command paywatch initiates an M-Pesa charge for an invoice and watches it
// until it resolves, the way the payment modal does.
//
//	paywatch --base-url=http://localhost:3000 --invoice=<publicId> --phone=0712345678
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"riciti/pkg/payclient"
	"riciti/pkg/poller"
)

func main() {
	var (
		baseURL     string
		invoiceID   string
		phone       string
		manualQuery bool
		attempts    int
	)
	flag.StringVar(&baseURL, "base-url", "http://localhost:3000", "riciti API base URL")
	flag.StringVar(&invoiceID, "invoice", "", "public invoice id")
	flag.StringVar(&phone, "phone", "", "payer phone, 07XXXXXXXX or 2547XXXXXXXX")
	flag.BoolVar(&manualQuery, "manual-query", false, "query the provider once right after initiation")
	flag.IntVar(&attempts, "attempts", poller.DefaultConfig().MaxAttempts, "status polls before giving up")
	flag.Parse()

	if invoiceID == "" || phone == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, payclient.New(baseURL), invoiceID, phone, manualQuery, attempts))
}

func run(ctx context.Context, client poller.Client, invoiceID, phone string, manualQuery bool, attempts int) int {
	cfg := poller.DefaultConfig()
	cfg.MaxAttempts = attempts

	done := make(chan poller.State, 1)
	p := poller.New(client, invoiceID, cfg, func(ev poller.Event) {
		printEvent(ev)
		if ev.State.IsFinal() {
			select {
			case done <- ev.State:
			default:
			}
		}
	})
	defer p.Close()

	submitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err := p.Submit(submitCtx, phone)
	cancel()
	if err != nil {
		var apiErr *payclient.APIError
		if errors.As(err, &apiErr) {
			fmt.Fprintln(os.Stderr, "initiate:", apiErr.Message)
		} else {
			fmt.Fprintln(os.Stderr, "initiate:", err)
		}
		return 1
	}

	if manualQuery {
		queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		st, err := p.ManualQuery(queryCtx)
		cancel()
		switch {
		case err != nil:
			fmt.Fprintln(os.Stderr, "manual query:", err)
		case !st.IsFinal():
			fmt.Println("still waiting for the customer, polling continues")
		}
	}

	select {
	case st := <-done:
		if st == poller.StateSuccess {
			return 0
		}
		return 1
	case <-ctx.Done():
		fmt.Println("interrupted")
		return 130
	}
}

func printEvent(ev poller.Event) {
	line := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), ev.State)
	if ev.Attempt > 0 {
		line += fmt.Sprintf(" attempt=%d", ev.Attempt)
	}
	if ev.CheckoutRequestID != "" {
		line += " checkout=" + ev.CheckoutRequestID
	}
	if ev.Message != "" {
		line += " " + ev.Message
	}
	if ev.Status != nil && ev.Status.LatestPayment != nil && ev.Status.LatestPayment.MpesaReceiptNumber != "" {
		line += " receipt=" + ev.Status.LatestPayment.MpesaReceiptNumber
	}
	fmt.Println(line)
}
