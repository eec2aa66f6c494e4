// Copyright 2024 The Altsock Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// altsock-fetch fetches a URL, selecting the transport for each connection
// from a policy table: plain TCP for port 80, TLS for port 443, or a proxy
// tunnel when one is configured.
//
// Note that the table handles the TLS layer, so the URL scheme is always
// http; use the port to pick the transport.
//
// Usage:
//
//	altsock-fetch [-proxy socks5://HOST:PORT] http://example.com:443/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/altsock/altsock/config"
	"github.com/altsock/altsock/transport/policy"
)

func main() {
	proxyFlag := flag.String("proxy", "", "Route connections through this proxy (socks5:// or ss:// URL)")
	flag.Parse()

	url := flag.Arg(0)
	if url == "" {
		log.Fatal("Need to pass the URL to fetch in the command-line")
	}

	table, err := config.NewTable(config.Config{ProxyURL: *proxyFlag})
	if err != nil {
		log.Fatalf("Could not build policy table: %v", err)
	}

	dialContext := func(ctx context.Context, network, addr string) (net.Conn, error) {
		if !strings.HasPrefix(network, "tcp") {
			return nil, fmt.Errorf("protocol not supported: %v", network)
		}
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, err
		}
		binding, err := table.Select(policy.Key{Host: host, Port: port})
		if err != nil {
			return nil, err
		}
		conn, err := binding.Connect(ctx)
		if err != nil {
			// The abandoned binding still owns its context.
			if releaseErr := binding.Release(); releaseErr != nil {
				log.Printf("Failed to release binding for %v: %v", addr, releaseErr)
			}
			return nil, err
		}
		return conn, nil
	}

	httpClient := &http.Client{Transport: &http.Transport{DialContext: dialContext}}
	resp, err := httpClient.Get(url)
	if err != nil {
		log.Fatalf("URL GET failed: %v", err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
		log.Fatalf("Read of page body failed: %v", err)
	}
}
