// ABOUTME: Admin CLI for the atende-gateway attendance dashboard
// ABOUTME: Drives the HTTP API: queue, conversations, claim/release, metrics, live events

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

const banner = `
       _                 _                     _           _
  __ _| |_ ___ _ __   __| | ___        __ _ __| |_ __ ___ (_)_ __
 / _' | __/ _ \ '_ \ / _' |/ _ \_____ / _' / _' | '_ ' _ \| | '_ \
| (_| | ||  __/ | | | (_| |  __/_____| (_| | (_| | | | | | | | | | |
 \__,_|\__\___|_| |_|\__,_|\___|      \__,_|\__,_|_| |_| |_|_|_| |_|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	baseURL := os.Getenv("ATENDE_GATEWAY_URL")
	if baseURL == "" {
		if host := os.Getenv("ATENDE_GATEWAY_HOST"); host != "" {
			baseURL = "http://" + host + ":8080"
		} else {
			baseURL = "http://localhost:8080"
		}
	}
	baseURL = strings.TrimRight(baseURL, "/")

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "status":
		err = cmdStatus(baseURL)
	case "queue":
		err = cmdQueue(baseURL, args)
	case "conversations", "convs":
		err = cmdConversations(baseURL, args)
	case "claim":
		err = cmdClaim(baseURL, args)
	case "release":
		err = cmdRelease(baseURL, args)
	case "send":
		err = cmdSend(baseURL, args)
	case "audit":
		err = cmdAudit(baseURL, args)
	case "metrics":
		err = cmdMetrics(baseURL)
	case "watch":
		err = cmdWatch(baseURL)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: atende-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  status                       Show gateway health and queue length")
	fmt.Println("  queue                        List customers waiting for an operator")
	fmt.Println("  queue remove <user>          Remove a customer from the queue")
	fmt.Println("  conversations                List active conversations")
	fmt.Println("  conversations get <user>     Show one conversation's full state")
	fmt.Println("  conversations step <user> <step>   Override a conversation's step")
	fmt.Println("  conversations delete <user>  Delete a conversation")
	fmt.Println("  claim <user> <attendant>     Take over a conversation")
	fmt.Println("  release <user> <attendant>   Hand a conversation back to the bot")
	fmt.Println("  send <to> <message...>       Send a WhatsApp message to a customer")
	fmt.Println("  audit [limit]                List operator claim/release actions")
	fmt.Println("  metrics                      Show attendance metrics")
	fmt.Println("  watch                        Stream dashboard events live")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  ATENDE_GATEWAY_URL           Gateway base URL (default: http://localhost:8080)")
	fmt.Println("  ATENDE_GATEWAY_HOST          Gateway hostname (derives http://<host>:8080)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  atende-admin queue")
	fmt.Println("  atende-admin claim 5511999999999@c.us maria")
	fmt.Println("  atende-admin send 5511999999999@c.us \"Olá! Pode me enviar a nota fiscal?\"")
	fmt.Println()
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

// getJSON issues a GET and decodes the JSON body into out.
func getJSON(url string, out any) error {
	resp, err := httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", url, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

// doJSON issues a request with an optional JSON body and decodes the reply.
func doJSON(method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", url, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func cmdStatus(baseURL string) error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()

	var health struct {
		Status string `json:"status"`
	}
	if err := getJSON(baseURL+"/health", &health); err != nil {
		yellow.Printf("  Gateway:  ")
		color.Red("UNREACHABLE (%v)\n", err)
		return nil
	}

	green.Printf("  Gateway:  ")
	fmt.Printf("%s at %s\n", health.Status, baseURL)

	var metrics struct {
		QueueLength        int `json:"queueLength"`
		TotalConversations int `json:"totalConversations"`
		InHumanChat        int `json:"inHumanChat"`
	}
	if err := getJSON(baseURL+"/api/metrics", &metrics); err == nil {
		green.Printf("  Queue:    ")
		fmt.Printf("%d waiting\n", metrics.QueueLength)
		green.Printf("  Active:   ")
		fmt.Printf("%d conversations (%d with a human)\n", metrics.TotalConversations, metrics.InHumanChat)
	}

	fmt.Println()
	return nil
}

func cmdQueue(baseURL string, args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "remove", "rm":
			if len(args) < 2 {
				return fmt.Errorf("usage: queue remove <user>")
			}
			if err := doJSON(http.MethodDelete, baseURL+"/api/queue/"+args[1], nil, nil); err != nil {
				return err
			}
			color.Green("✓ Removed %s from the queue\n", args[1])
			return nil
		case "list", "ls":
			// fall through to list
		default:
			return fmt.Errorf("unknown queue subcommand: %s (use list, remove)", args[0])
		}
	}

	var resp struct {
		Queue []struct {
			Position      int    `json:"position"`
			UserID        string `json:"userId"`
			Name          string `json:"name"`
			Step          string `json:"step"`
			Waiting       string `json:"waiting"`
			EstimatedWait string `json:"estimatedWait"`
		} `json:"queue"`
	}
	if err := getJSON(baseURL+"/api/queue", &resp); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Waiting Queue")
	cyan.Println("  -------------")

	if len(resp.Queue) == 0 {
		fmt.Println("  (no one waiting)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  POS\tUSER\tNAME\tSTEP\tWAITING\tESTIMATE")
	fmt.Fprintln(w, "  ---\t----\t----\t----\t-------\t--------")
	for _, e := range resp.Queue {
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\t%s\n", e.Position, truncate(e.UserID, 28), truncate(e.Name, 20), e.Step, e.Waiting, e.EstimatedWait)
	}
	w.Flush()
	fmt.Println()

	return nil
}

func cmdConversations(baseURL string, args []string) error {
	subcmd := "list"
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "list", "ls":
		return cmdConversationsList(baseURL)
	case "get", "show":
		if len(args) < 1 {
			return fmt.Errorf("usage: conversations get <user>")
		}
		return cmdConversationsGet(baseURL, args[0])
	case "step":
		if len(args) < 2 {
			return fmt.Errorf("usage: conversations step <user> <step>")
		}
		body := map[string]string{"step": args[1]}
		if err := doJSON(http.MethodPut, baseURL+"/api/conversations/"+args[0]+"/step", body, nil); err != nil {
			return err
		}
		color.Green("✓ Step of %s set to %s\n", args[0], args[1])
		return nil
	case "delete", "rm", "remove":
		if len(args) < 1 {
			return fmt.Errorf("usage: conversations delete <user>")
		}
		if err := doJSON(http.MethodDelete, baseURL+"/api/conversations/"+args[0], nil, nil); err != nil {
			return err
		}
		color.Green("✓ Deleted conversation %s\n", args[0])
		return nil
	default:
		return fmt.Errorf("unknown conversations subcommand: %s (use list, get, step, delete)", subcmd)
	}
}

func cmdConversationsList(baseURL string) error {
	var resp struct {
		Conversations []struct {
			UserID          string    `json:"userId"`
			Name            string    `json:"name"`
			Step            string    `json:"step"`
			Mode            string    `json:"mode"`
			Attendant       string    `json:"attendant"`
			LastInteraction time.Time `json:"lastInteraction"`
		} `json:"conversations"`
	}
	if err := getJSON(baseURL+"/api/conversations", &resp); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Conversations")
	cyan.Println("  -------------")

	if len(resp.Conversations) == 0 {
		fmt.Println("  (no active conversations)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  USER\tNAME\tSTEP\tMODE\tATTENDANT\tLAST SEEN")
	fmt.Fprintln(w, "  ----\t----\t----\t----\t---------\t---------")
	for _, c := range resp.Conversations {
		last := ""
		if !c.LastInteraction.IsZero() {
			last = c.LastInteraction.Local().Format("Jan 02 15:04")
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(c.UserID, 28), truncate(c.Name, 20), c.Step, c.Mode, c.Attendant, last)
	}
	w.Flush()
	fmt.Println()

	return nil
}

func cmdConversationsGet(baseURL, userID string) error {
	var raw json.RawMessage
	if err := getJSON(baseURL+"/api/conversations/"+userID, &raw); err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return fmt.Errorf("formatting response: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Printf("  Conversation %s\n", userID)
	fmt.Println()
	fmt.Println(pretty.String())
	fmt.Println()
	return nil
}

func cmdClaim(baseURL string, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: claim <user> <attendant>")
	}

	body := map[string]string{"attendant": args[1]}
	if err := doJSON(http.MethodPost, baseURL+"/api/conversations/"+args[0]+"/claim", body, nil); err != nil {
		return err
	}

	color.Green("✓ %s claimed %s\n", args[1], args[0])
	return nil
}

func cmdRelease(baseURL string, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: release <user> <attendant>")
	}

	body := map[string]string{"attendant": args[1]}
	if err := doJSON(http.MethodPost, baseURL+"/api/conversations/"+args[0]+"/release", body, nil); err != nil {
		return err
	}

	color.Green("✓ %s released %s back to the bot\n", args[1], args[0])
	return nil
}

func cmdSend(baseURL string, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: send <to> <message...>")
	}

	body := map[string]string{
		"to":      args[0],
		"message": strings.Join(args[1:], " "),
	}
	if err := doJSON(http.MethodPost, baseURL+"/api/send", body, nil); err != nil {
		return err
	}

	color.Green("✓ Sent to %s\n", args[0])
	return nil
}

func cmdAudit(baseURL string, args []string) error {
	url := baseURL + "/api/audit"
	if len(args) > 0 {
		url += "?limit=" + args[0]
	}

	var resp struct {
		Audit []struct {
			Action       string    `json:"action"`
			Conversation string    `json:"conversation"`
			Attendant    string    `json:"attendant"`
			Timestamp    time.Time `json:"timestamp"`
		} `json:"audit"`
	}
	if err := getJSON(url, &resp); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Operator Actions")
	cyan.Println("  ----------------")

	if len(resp.Audit) == 0 {
		fmt.Println("  (no operator actions recorded)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  WHEN\tACTION\tATTENDANT\tCONVERSATION")
	fmt.Fprintln(w, "  ----\t------\t---------\t------------")
	for _, e := range resp.Audit {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("Jan 02 15:04:05"), e.Action, e.Attendant, truncate(e.Conversation, 28))
	}
	w.Flush()
	fmt.Println()

	return nil
}

func cmdMetrics(baseURL string) error {
	var resp struct {
		QueueLength        int            `json:"queueLength"`
		TotalConversations int            `json:"totalConversations"`
		InHumanChat        int            `json:"inHumanChat"`
		ClaimsByAttendant  map[string]int `json:"claimsByAttendant"`
		TotalClaims        int            `json:"totalClaims"`
		TotalReleases      int            `json:"totalReleases"`
	}
	if err := getJSON(baseURL+"/api/metrics", &resp); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Attendance Metrics")
	cyan.Println("  ------------------")
	fmt.Printf("  Queue length:         %d\n", resp.QueueLength)
	fmt.Printf("  Active conversations: %d\n", resp.TotalConversations)
	fmt.Printf("  In human chat:        %d\n", resp.InHumanChat)
	fmt.Printf("  Total claims:         %d\n", resp.TotalClaims)
	fmt.Printf("  Total releases:       %d\n", resp.TotalReleases)

	if len(resp.ClaimsByAttendant) > 0 {
		fmt.Println()
		cyan.Println("  Claims by Attendant")
		cyan.Println("  -------------------")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for name, n := range resp.ClaimsByAttendant {
			fmt.Fprintf(w, "  %s\t%d\n", name, n)
		}
		w.Flush()
	}
	fmt.Println()

	return nil
}

// cmdWatch tails the SSE event stream until interrupted.
func cmdWatch(baseURL string) error {
	// The stream is long-lived, so no client timeout here.
	client := &http.Client{}
	resp, err := client.Get(baseURL + "/api/events")
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}

	cyan := color.New(color.FgCyan)
	cyan.Printf("Watching events from %s (Ctrl+C to stop)\n\n", baseURL)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	dim := color.New(color.Faint)

	var eventName string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventName = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			ts := time.Now().Format("15:04:05")
			switch eventName {
			case "connected":
				dim.Printf("%s connected\n", ts)
			case "queue:join":
				green.Printf("%s %-16s ", ts, eventName)
				fmt.Println(data)
			case "queue:leave":
				yellow.Printf("%s %-16s ", ts, eventName)
				fmt.Println(data)
			default:
				fmt.Printf("%s %-16s %s\n", ts, eventName, data)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream closed: %w", err)
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
