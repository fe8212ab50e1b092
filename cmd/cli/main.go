package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Interactive helper that mutes alerts for a while through the admin API.
func main() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	key := os.Getenv("ADMIN_API_KEY")

	reader := bufio.NewReader(os.Stdin)
	ask := func(prompt string) string {
		fmt.Print(prompt)
		raw, _ := reader.ReadString('\n')
		return strings.TrimSpace(raw)
	}

	match := ask("Regex of checks to mute, as type|label|identifier (empty mutes everything): ")
	if _, err := regexp.Compile(match); err != nil {
		fmt.Println("Invalid regex:", err)
		return
	}
	minutes, err := strconv.Atoi(ask("Mute for how many minutes? "))
	if err != nil || minutes <= 0 {
		fmt.Println("Invalid duration.")
		return
	}
	reason := ask("Reason (optional): ")

	from := time.Now().UTC()
	body, _ := json.Marshal(map[string]any{
		"match":  match,
		"from":   from,
		"to":     from.Add(time.Duration(minutes) * time.Minute),
		"reason": reason,
	})
	req, err := http.NewRequest(http.MethodPost, api+"/api/mute-windows", bytes.NewReader(body))
	if err != nil {
		fmt.Println("Invalid API_BASE:", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("Error contacting API:", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var created struct {
			ID string `json:"id"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&created)
		fmt.Printf("Muted until %s (id %s). Remove early with DELETE /api/mute-windows/%s.\n",
			from.Add(time.Duration(minutes)*time.Minute).Format(time.RFC3339), created.ID, created.ID)
	} else {
		fmt.Println("API returned status:", resp.Status)
	}
}
