package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/wilofice/enel/internal/store"
)

func main() {
	addrFlag := flag.String("addr", "127.0.0.1:3000", "dashboard address of the running daemon")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	priorityFlag := flag.Int("priority", 0, "priority for the send command")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c := &client{
		base: "http://" + *addrFlag,
		http: &http.Client{Timeout: 10 * time.Second},
		json: *jsonFlag,
	}

	switch args[0] {
	case "drafts":
		c.listEntries("/api/drafts")
	case "outbox":
		path := "/api/outbox"
		if len(args) >= 2 {
			path += "?status=" + args[1]
		}
		c.listEntries(path)
	case "promote":
		c.entryAction(args[1:], "promote")
	case "retry":
		c.entryAction(args[1:], "retry")
	case "send":
		c.send(args[1:], *priorityFlag)
	case "jobs":
		c.jobs()
	case "sent-today":
		c.sentToday()
	case "follow-ups":
		c.followUps()
	case "transcription":
		c.transcription(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: enelctl [--addr <host:port>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  drafts                        List drafts waiting for approval")
	fmt.Fprintln(os.Stderr, "  outbox [status]               List outbox entries (default queued)")
	fmt.Fprintln(os.Stderr, "  promote <id>                  Approve a draft for delivery")
	fmt.Fprintln(os.Stderr, "  retry <id>                    Re-queue a failed entry")
	fmt.Fprintln(os.Stderr, "  send <chat> <text>            Queue a manual message")
	fmt.Fprintln(os.Stderr, "  jobs                          Show the job ledger")
	fmt.Fprintln(os.Stderr, "  sent-today                    List messages sent today")
	fmt.Fprintln(os.Stderr, "  follow-ups                    List open follow-up suggestions")
	fmt.Fprintln(os.Stderr, "  transcription <status|start|pause>")
}

type client struct {
	base string
	http *http.Client
	json bool
}

func (c *client) get(path string, out any) {
	resp, err := c.http.Get(c.base + path)
	c.decode(resp, err, out)
}

func (c *client) post(path string, body, out any) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			die(err)
		}
		reader = bytes.NewReader(payload)
	}
	resp, err := c.http.Post(c.base+path, "application/json", reader)
	c.decode(resp, err, out)
}

func (c *client) decode(resp *http.Response, err error, out any) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot reach daemon at %s: %v\n", c.base, err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		var apiErr map[string]string
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if msg := apiErr["error"]; msg != "" {
			die(fmt.Errorf("%s", msg))
		}
		die(fmt.Errorf("daemon returned %s", resp.Status))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			die(err)
		}
	}
}

func (c *client) listEntries(path string) {
	var entries []store.OutboxEntry
	c.get(path, &entries)
	if c.json {
		outputJSON(entries)
		return
	}
	if len(entries) == 0 {
		fmt.Println("nothing here")
		return
	}
	for _, e := range entries {
		fmt.Printf("%6d  %-8s  p%d  %-24s  %s\n", e.ID, e.Status, e.Priority, e.ChatID, e.Text)
	}
}

func (c *client) entryAction(args []string, action string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "usage: enelctl %s <id>\n", action)
		os.Exit(1)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		die(fmt.Errorf("invalid id %q", args[0]))
	}
	var resp map[string]int64
	c.post(fmt.Sprintf("/api/outbox/%d/%s", id, action), nil, &resp)
	fmt.Printf("entry %d %sd\n", id, action)
}

func (c *client) send(args []string, priority int) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: enelctl send <chat> <text>")
		os.Exit(1)
	}
	var resp map[string]int64
	c.post("/api/send", map[string]any{
		"chat_id":  args[0],
		"text":     args[1],
		"priority": priority,
	}, &resp)
	fmt.Printf("queued as entry %d\n", resp["id"])
}

func (c *client) jobs() {
	var jobs []store.JobStatus
	c.get("/api/jobs", &jobs)
	if c.json {
		outputJSON(jobs)
		return
	}
	if len(jobs) == 0 {
		fmt.Println("no jobs have run yet")
		return
	}
	for _, j := range jobs {
		state := "ok"
		if j.LastError != "" {
			state = "error: " + j.LastError
		}
		fmt.Printf("%-12s  last run %s  %s\n", j.Job, j.LastEnd.Format(time.RFC3339), state)
	}
}

func (c *client) sentToday() {
	var sent []store.SentMessage
	c.get("/api/sent-today", &sent)
	if c.json {
		outputJSON(sent)
		return
	}
	if len(sent) == 0 {
		fmt.Println("nothing sent today")
		return
	}
	for _, m := range sent {
		who := m.ContactName
		if who == "" {
			who = m.ChatID
		}
		fmt.Printf("%s  %-24s  %s\n", time.Unix(m.Timestamp, 0).UTC().Format("15:04"), who, m.Body)
	}
}

func (c *client) followUps() {
	var items []store.FollowUp
	c.get("/api/follow-ups", &items)
	if c.json {
		outputJSON(items)
		return
	}
	if len(items) == 0 {
		fmt.Println("no follow-ups suggested")
		return
	}
	for _, f := range items {
		fmt.Printf("%6d  %-10s  %s\n", f.ID, f.Reason, f.ContactID)
	}
}

func (c *client) transcription(args []string) {
	sub := "status"
	if len(args) >= 1 {
		sub = args[0]
	}
	var state map[string]bool
	switch sub {
	case "status":
		c.get("/api/transcription", &state)
	case "start", "pause":
		c.post("/api/transcription/"+sub, nil, &state)
	default:
		fmt.Fprintln(os.Stderr, "usage: enelctl transcription <status|start|pause>")
		os.Exit(1)
	}
	if c.json {
		outputJSON(state)
		return
	}
	if state["running"] {
		fmt.Println("transcription: running")
	} else {
		fmt.Println("transcription: paused")
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		die(err)
	}
}

func die(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
