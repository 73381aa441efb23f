package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/net/websocket"

	"github.com/kalambet/lumina/internal/audio"
)

var conciergeCmd = &cobra.Command{
	Use:   "concierge",
	Short: "Talk to Mini, the studio concierge",
}

var conciergeChatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send a message and stream the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		section, _ := cmd.Flags().GetString("section")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		_, err = streamChat(cmd.Context(), client, strings.Join(args, " "), section, os.Stdout)
		fmt.Println()
		return err
	},
}

// streamChat writes reply fragments to w as they arrive and returns the full
// reply.
func streamChat(ctx context.Context, c *apiClient, message, section string, w io.Writer) (string, error) {
	resp, err := c.post(ctx, "/concierge/chat", map[string]string{"message": message, "section": section})
	if err != nil {
		return "", err
	}
	var reply string
	err = readEvents(resp, func(event string, data []byte) error {
		var payload map[string]string
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		switch event {
		case "fragment":
			io.WriteString(w, payload["text"])
		case "done":
			reply = payload["reply"]
		}
		return nil
	})
	return reply, err
}

var conciergeSpeakCmd = &cobra.Command{
	Use:   "speak <text>",
	Short: "Synthesize speech as raw 24kHz PCM16",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			return fmt.Errorf("--output is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/concierge/speech", map[string]string{"text": strings.Join(args, " ")})
		if err != nil {
			return err
		}
		var sp struct {
			Audio    string `json:"audio"`
			MimeType string `json:"mimeType"`
		}
		if err := decodeJSON(resp, &sp); err != nil {
			return err
		}
		pcm, err := base64.StdEncoding.DecodeString(sp.Audio)
		if err != nil {
			return fmt.Errorf("decoding audio: %w", err)
		}
		if err := os.WriteFile(output, pcm, 0o644); err != nil {
			return err
		}
		printSuccess("Wrote %s (%s, %s)", output, sp.MimeType, audio.Duration(len(pcm)/2, audio.OutputSampleRate))
		return nil
	},
}

var conciergeLiveCmd = &cobra.Command{
	Use:   "live",
	Short: "Voice session over stdin/stdout",
	Long: `Start a live voice session. Raw 16kHz mono PCM16 is read from stdin and
the concierge's 24kHz mono PCM16 is written to stdout.

Example:
  arecord -f S16_LE -r 16000 -c 1 -t raw | lumina concierge live | aplay -f S16_LE -r 24000 -c 1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		section, _ := cmd.Flags().GetString("section")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runLive(cmd.Context(), client.baseURL, section, os.Stdin, os.Stdout)
	},
}

// liveFrame mirrors the server's live bridge messages.
type liveFrame struct {
	Type       string `json:"type"`
	Data       string `json:"data,omitempty"`
	Status     string `json:"status,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Error      string `json:"error,omitempty"`
}

func liveURL(baseURL, section string) string {
	u := "ws" + strings.TrimPrefix(baseURL, "http") + "/concierge/live"
	if section != "" {
		u += "?section=" + url.QueryEscape(section)
	}
	return u
}

// runLive streams microphone PCM from in to the server and writes the
// concierge's audio to out until in is exhausted, the server ends the
// session, or ctx is cancelled.
func runLive(ctx context.Context, baseURL, section string, in io.Reader, out io.Writer) error {
	ws, err := websocket.Dial(liveURL(baseURL, section), "", baseURL)
	if err != nil {
		return fmt.Errorf("connecting live session: %w", err)
	}
	defer ws.Close()

	errCh := make(chan error, 2)
	go func() {
		src := audio.NewReaderSource(in)
		for {
			frame, err := src.ReadFrame(ctx)
			if len(frame) > 0 {
				if err := websocket.JSON.Send(ws, liveFrame{Type: "audio", Data: audio.EncodeFrame(frame)}); err != nil {
					errCh <- err
					return
				}
			}
			if err != nil {
				websocket.JSON.Send(ws, liveFrame{Type: "stop"})
				return
			}
		}
	}()
	go func() {
		var last string
		for {
			var f liveFrame
			if err := websocket.JSON.Receive(ws, &f); err != nil {
				if errors.Is(err, io.EOF) {
					err = nil
				}
				errCh <- err
				return
			}
			switch f.Type {
			case "audio":
				pcm, err := base64.StdEncoding.DecodeString(f.Data)
				if err != nil {
					continue
				}
				if _, err := out.Write(pcm); err != nil {
					errCh <- err
					return
				}
			case "state":
				if f.Status != last {
					printStep("%s", f.Status)
					last = f.Status
				}
				if f.Transcript != "" {
					fmt.Fprintf(os.Stderr, "  %s\n", colorize(colorCyan, f.Transcript))
				}
			case "error":
				errCh <- errors.New(f.Error)
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		websocket.JSON.Send(ws, liveFrame{Type: "stop"})
		return nil
	case err := <-errCh:
		return err
	}
}

func init() {
	conciergeChatCmd.Flags().String("section", "", "page section the visitor is on")
	conciergeSpeakCmd.Flags().String("output", "", "output file for raw PCM")
	conciergeLiveCmd.Flags().String("section", "", "page section the visitor is on")
	conciergeCmd.AddCommand(conciergeChatCmd, conciergeSpeakCmd, conciergeLiveCmd)
}
