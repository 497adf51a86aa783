package bot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/publicsuffix"

	"github.com/camhive/live-core/internal/core"
	"github.com/camhive/live-core/internal/eventbus/rpc"
)

// Bot is a scripted anonymous viewer: it joins a broadcaster's session,
// listens for nudges over the websocket and polls the signal mailbox,
// answering every offer it receives. Useful for smoke-testing a running
// stack end to end.
type Bot struct {
	serverHost    string
	wsHost        string
	broadcasterID string

	client        *http.Client
	cookieJar     *cookiejar.Jar
	websocketConn *websocket.Conn

	sessionID     string
	participantID string
}

type joinRequest struct {
	BroadcasterID string `json:"broadcaster_id"`
}

type joinResponse struct {
	Session struct {
		ID            string `json:"id"`
		BroadcasterID string `json:"broadcaster_id"`
	} `json:"session"`
	ParticipantID string `json:"participant_id"`
	GateState     string `json:"gate_state"`
}

type signalSendRequest struct {
	SessionID string          `json:"session_id"`
	TargetID  string          `json:"target_id"`
	Kind      core.SignalKind `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
}

type signalPullResponse struct {
	Messages []*core.SignalMessage `json:"messages"`
}

func New(host, wsHost, broadcasterID string) (*Bot, error) {
	// The guest identity lives in the cookie, the jar keeps it stable
	// across HTTP and websocket requests.
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{
		Timeout: 5 * time.Second,
		Jar:     jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	bot := &Bot{
		serverHost:    host,
		wsHost:        wsHost,
		broadcasterID: broadcasterID,
		client:        httpClient,
		cookieJar:     jar,
	}

	return bot, nil
}

func (bot *Bot) Close() {
	bot.client.CloseIdleConnections()

	if bot.websocketConn != nil {
		bot.websocketConn.Close()
	}
}

func (bot *Bot) Start() error {
	defer bot.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	if err := bot.join(); err != nil {
		return err
	}

	dialer := &websocket.Dialer{
		Jar:              bot.cookieJar,
		HandshakeTimeout: 45 * time.Second,
	}

	c, resp, err := dialer.Dial(fmt.Sprintf("ws://%s/ws", bot.wsHost), nil)
	if err != nil {
		return err
	}
	resp.Body.Close()

	bot.websocketConn = c

	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			if err := bot.readRPC(c); err != nil {
				log.Printf("read error: %v", err)
				return
			}
		}
	}()

	// The nudge is best effort, poll on a timer as well.
	poll := time.NewTicker(2 * time.Second)
	defer poll.Stop()

	for {
		select {
		case <-done:
			return nil
		case <-poll.C:
			if err := bot.pullSignals(); err != nil {
				log.Printf("poll error: %v", err)
				return nil
			}
		case <-interrupt:
			log.Println("interrupt")

			// Cleanly close the connection by sending a close message and then
			// waiting (with timeout) for the server to close the connection.
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				return err
			}

			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return nil
		}
	}
}

func (bot *Bot) join() error {
	body, err := json.Marshal(&joinRequest{BroadcasterID: bot.broadcasterID})
	if err != nil {
		return err
	}

	resp, err := bot.client.Post(
		fmt.Sprintf("http://%s/sessions/join", bot.serverHost),
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("join failed with status %d", resp.StatusCode)
	}

	joined := &joinResponse{}
	if err := json.NewDecoder(resp.Body).Decode(joined); err != nil {
		return err
	}

	bot.sessionID = joined.Session.ID
	bot.participantID = joined.ParticipantID

	log.Printf("joined session %s as participant %s (%s)", bot.sessionID, bot.participantID, joined.GateState)

	return nil
}

func (bot *Bot) readRPC(conn *websocket.Conn) error {
	_, message, err := conn.ReadMessage()
	if err != nil {
		return err
	}

	reader := bytes.NewReader(message)
	p, err := rpc.RpcFromReader(reader)
	if err != nil {
		return err
	}

	switch p.GetMethod() {
	case rpc.SignalPendingMethod:
		if err := bot.pullSignals(); err != nil {
			log.Printf("pull error: %v", err)
		}
	case rpc.GateChangedMethod:
		msg := p.(*rpc.GateChangedRpc)
		log.Printf("gate changed: %s", msg.Params.State)
	case rpc.SessionClosedMethod:
		log.Println("session closed, leaving")
		return fmt.Errorf("session closed")
	default:
		log.Printf("ignoring rpc: %s", p.GetMethod())
	}

	return nil
}

func (bot *Bot) pullSignals() error {
	url := fmt.Sprintf(
		"http://%s/signals?session_id=%s&participant_id=%s",
		bot.serverHost, bot.sessionID, bot.participantID,
	)

	resp, err := bot.client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		return fmt.Errorf("gated: preview is over")
	default:
		return fmt.Errorf("pull failed with status %d", resp.StatusCode)
	}

	pulled := &signalPullResponse{}
	if err := json.NewDecoder(resp.Body).Decode(pulled); err != nil {
		return err
	}

	for _, message := range pulled.Messages {
		log.Printf("signal %s from %s", message.Kind, message.SenderID)

		if message.Kind == core.SignalOffer {
			if err := bot.sendAnswer(message.SenderID); err != nil {
				return err
			}
		}
	}

	return nil
}

func (bot *Bot) sendAnswer(targetID string) error {
	body, err := json.Marshal(&signalSendRequest{
		SessionID: bot.sessionID,
		TargetID:  targetID,
		Kind:      core.SignalAnswer,
		Payload:   json.RawMessage(`{"type":"answer","sdp":""}`),
	})
	if err != nil {
		return err
	}

	resp, err := bot.client.Post(
		fmt.Sprintf("http://%s/signals", bot.serverHost),
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("send answer failed with status %d", resp.StatusCode)
	}

	return nil
}
