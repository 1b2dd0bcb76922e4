// Package main provides a dashboard CLI for driving the bot over HTTP.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/sacudo/sacudo/internal/app/dispatcher"
)

var (
	app    = kingpin.New("botctl", "Dashboard client for the sacudo bot")
	server = app.Flag("server", "Dashboard address").Default("http://localhost:8080").String()

	// guilds command
	guildsCmd = app.Command("guilds", "List guilds with active sessions")

	// state command
	stateCmd   = app.Command("state", "Show the playback state of a guild")
	stateGuild = stateCmd.Arg("guild-id", "Guild ID").Required().String()

	// play command
	playCmd       = app.Command("play", "Queue a track or playlist")
	playGuild     = playCmd.Arg("guild-id", "Guild ID").Required().String()
	playChannel   = playCmd.Arg("channel-id", "Voice channel ID").Required().String()
	playQuery     = playCmd.Arg("query", "Track URL or search query").Required().Strings()
	playRequester = playCmd.Flag("requester", "Requester name shown in updates").Default("botctl").String()

	// single-word playback commands
	skipCmd    = app.Command("skip", "Skip the current track")
	skipGuild  = skipCmd.Arg("guild-id", "Guild ID").Required().String()
	pauseCmd   = app.Command("pause", "Pause playback")
	pauseGuild = pauseCmd.Arg("guild-id", "Guild ID").Required().String()
	resumeCmd  = app.Command("resume", "Resume playback")
	resumeGld  = resumeCmd.Arg("guild-id", "Guild ID").Required().String()
	stopCmd    = app.Command("stop", "Stop playback and clear the queue")
	stopGuild  = stopCmd.Arg("guild-id", "Guild ID").Required().String()

	// watch command
	watchCmd = app.Command("watch", "Stream playback updates over websocket")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	switch command {
	case guildsCmd.FullCommand():
		listGuilds()
	case stateCmd.FullCommand():
		showState(*stateGuild)
	case playCmd.FullCommand():
		play(*playGuild, *playChannel, strings.Join(*playQuery, " "), *playRequester)
	case skipCmd.FullCommand():
		command1("skip", *skipGuild)
	case pauseCmd.FullCommand():
		command1("pause", *pauseGuild)
	case resumeCmd.FullCommand():
		command1("resume", *resumeGld)
	case stopCmd.FullCommand():
		command1("stop", *stopGuild)
	case watchCmd.FullCommand():
		watch()
	}
}

func listGuilds() {
	var resp struct {
		Guilds []string `json:"guilds"`
	}
	get("/api/guilds", &resp)

	if len(resp.Guilds) == 0 {
		fmt.Println("No active sessions.")
		return
	}
	fmt.Println("Active sessions:")
	for _, id := range resp.Guilds {
		fmt.Printf("  %s\n", id)
	}
}

func showState(guildID string) {
	var u dispatcher.Update
	get("/api/guild/"+guildID+"/state", &u)
	printUpdate(&u)
}

func play(guildID, channelID, query, requester string) {
	body := map[string]string{
		"query":      query,
		"channel_id": channelID,
		"requester":  requester,
	}
	var resp struct {
		Started       bool   `json:"started"`
		Queued        int    `json:"queued"`
		PlaylistTitle string `json:"playlist_title"`
	}
	post("/api/guild/"+guildID+"/play", body, &resp)

	switch {
	case resp.PlaylistTitle != "":
		fmt.Printf("Queued %d tracks from %s\n", resp.Queued, resp.PlaylistTitle)
	case resp.Started:
		fmt.Println("Playing now")
	default:
		fmt.Println("Added to queue")
	}
}

func command1(name, guildID string) {
	post("/api/guild/"+guildID+"/"+name, struct{}{}, &struct {
		OK bool `json:"ok"`
	}{})
	fmt.Println("OK")
}

func watch() {
	wsURL := strings.Replace(*server, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Println("Watching playback updates. Press Ctrl+C to exit.")

	// Handle shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nDisconnecting...")
		conn.Close()
		os.Exit(0)
	}()

	for {
		var u dispatcher.Update
		if err := conn.ReadJSON(&u); err != nil {
			fmt.Printf("Stream error: %v\n", err)
			os.Exit(1)
		}
		printUpdate(&u)
	}
}

func printUpdate(u *dispatcher.Update) {
	fmt.Printf("\n[Sequence: %d] ", u.SequenceNo)

	switch u.Type {
	case dispatcher.UpdateQueue:
		fmt.Println("=== QUEUE UPDATE ===")
	default:
		fmt.Println("=== SONG UPDATE ===")
	}

	if u.GuildID != "" {
		fmt.Printf("  Guild: %s\n", u.GuildID)
	}
	fmt.Printf("  State: %s\n", u.State)

	if u.Current != nil {
		fmt.Println("\nNow playing:")
		fmt.Printf("  Title: %s\n", u.Current.Title)
		fmt.Printf("  URL: %s\n", u.Current.URL)
		if u.Current.Requester != "" {
			fmt.Printf("  Requested by: %s\n", u.Current.Requester)
		}
	}

	if len(u.Queue) > 0 {
		fmt.Println("\nUp next:")
		for i, item := range u.Queue {
			title := item.Title
			if title == "" {
				title = item.URL
			}
			fmt.Printf("  %d. %s\n", i+1, title)
		}
	}

	if u.Error != "" {
		fmt.Printf("\nError: %s\n", u.Error)
	}
	fmt.Println()
}

func get(path string, out any) {
	resp, err := http.Get(*server + path)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	handleResponse(resp, out)
}

func post(path string, body, out any) {
	data, err := json.Marshal(body)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	resp, err := http.Post(*server+path, "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	handleResponse(resp, out)
}

func handleResponse(resp *http.Response, out any) {
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			fmt.Printf("Rejected [%d]: %s\n", resp.StatusCode, apiErr.Error)
		} else {
			fmt.Printf("Error: unexpected status %d\n", resp.StatusCode)
		}
		os.Exit(1)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
