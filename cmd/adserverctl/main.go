package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"adserver/native/adserver"
)

const (
	defaultAddr = "http://127.0.0.1:8080"
	addrEnv     = "ADSERVER_ADDR"
)

// request is a single call against the daemon.
type request struct {
	path string
	body []byte
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: adserverctl <command> [flags]

Commands:
  instantiate                          reset the registry to empty
  add -id ID -image URL -target URL -reward ADDR
  serve -id ID                         record one impression
  delete -id ID                        remove an ad
  batch-serve -ids ID,ID,...           record one impression per id
  get -id ID                           show one ad
  list                                 show every ad
  total                                show lifetime views

Every command accepts -addr (default $ADSERVER_ADDR or ` + defaultAddr + `).`)
}

func run(command string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	addr := fs.String("addr", envOr(addrEnv, defaultAddr), "adserverd base URL")
	timeout := fs.Duration("timeout", 10*time.Second, "request timeout")
	id := fs.String("id", "", "ad identifier")
	image := fs.String("image", "", "image URL")
	target := fs.String("target", "", "target URL")
	reward := fs.String("reward", "", "reward address")
	ids := fs.String("ids", "", "comma-separated ad identifiers")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req, err := buildRequest(command, *id, *image, *target, *reward, *ids)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: *timeout}
	resp, err := call(client, *addr, req)
	if err != nil {
		return err
	}
	return printJSON(out, resp)
}

func buildRequest(command, id, image, target, reward, ids string) (request, error) {
	requireID := func() error {
		if id == "" {
			return fmt.Errorf("%s: -id is required", command)
		}
		return nil
	}
	var (
		path string
		msg  interface{}
	)
	switch command {
	case "instantiate":
		path, msg = "/instantiate", adserver.InitMsg{}
	case "add":
		if err := requireID(); err != nil {
			return request{}, err
		}
		path = "/execute"
		msg = adserver.ExecuteMsg{AddAd: &adserver.AddAdMsg{ID: id, ImageURL: image, TargetURL: target, RewardAddress: reward}}
	case "serve":
		if err := requireID(); err != nil {
			return request{}, err
		}
		path, msg = "/execute", adserver.ExecuteMsg{ServeAd: &adserver.ServeAdMsg{ID: id}}
	case "delete":
		if err := requireID(); err != nil {
			return request{}, err
		}
		path, msg = "/execute", adserver.ExecuteMsg{DeleteAd: &adserver.DeleteAdMsg{ID: id}}
	case "batch-serve":
		path, msg = "/execute", adserver.ExecuteMsg{BatchServeAds: &adserver.BatchServeAdsMsg{IDs: splitIDs(ids)}}
	case "get":
		if err := requireID(); err != nil {
			return request{}, err
		}
		path, msg = "/query", adserver.QueryMsg{Ad: &adserver.AdQuery{ID: id}}
	case "list":
		path, msg = "/query", adserver.QueryMsg{Ads: true}
	case "total":
		path, msg = "/query", adserver.QueryMsg{TotalViews: true}
	default:
		return request{}, fmt.Errorf("unknown command %q", command)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return request{}, fmt.Errorf("encode %s: %w", command, err)
	}
	return request{path: path, body: body}, nil
}

func splitIDs(raw string) []string {
	ids := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

func call(client *http.Client, addr string, req request) ([]byte, error) {
	url := strings.TrimRight(addr, "/") + req.path
	resp, err := client.Post(url, "application/json", bytes.NewReader(req.body))
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(payload, &failure); err == nil && failure.Error != "" {
			return nil, fmt.Errorf("%s (status %d)", failure.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return payload, nil
}

func printJSON(out io.Writer, payload []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return errors.New("daemon returned malformed JSON")
	}
	buf.WriteByte('\n')
	_, err := out.Write(buf.Bytes())
	return err
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
