// Manual smoke client for the chat stream endpoint: posts one message and
// prints each SSE frame as it arrives.
//
//	go run ./scripts -message "find me hotels in Tokyo" -mode research
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
)

var (
	baseURL = flag.String("url", "http://localhost:8080", "server base URL")
	message = flag.String("message", "best ramen in Shibuya", "user message to send")
	mode    = flag.String("mode", "", "chat mode: ask, research or itinerary (empty = classified)")
	token   = flag.String("token", "", "optional bearer token")
	tripID  = flag.String("trip", "", "optional trip id")
)

func main() {
	flag.Parse()

	body, err := json.Marshal(map[string]any{
		"message":  *message,
		"chatMode": *mode,
		"trip_id":  *tripID,
	})
	if err != nil {
		log.Fatal(err)
	}

	req, err := http.NewRequest(http.MethodPost, *baseURL+"/api/v1/chat/stream", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if *token != "" {
		req.Header.Set("Authorization", "Bearer "+*token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	fmt.Println("status:", resp.Status)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		fmt.Println(strings.TrimPrefix(line, "data: "))
	}
	if err := scanner.Err(); err != nil {
		log.Fatal(err)
	}
}
