/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package httpclient

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// client is an HTTP client implementation that wraps the standard http.Client
// with additional functionality like retry logic and simplified request building.
type client struct {
	*http.Client
	maxTry int
}

const (
	DefaultTimeout = 30 * time.Second
	DefaultMaxTry  = 2
)

var (
	once     sync.Once
	instance *client
)

// NewHttpClient creates a singleton instance of the HTTP client with
// connection pooling and a default 30 second timeout.
func NewHttpClient() Interface {
	once.Do(func() {
		instance = newClient(DefaultTimeout, DefaultMaxTry)
	})
	return instance
}

// NewWithTimeout creates a dedicated client with the given timeout and
// attempt budget. Used for callback delivery where the timeout is short.
func NewWithTimeout(timeout time.Duration, maxTry int) Interface {
	return newClient(timeout, maxTry)
}

func newClient(timeout time.Duration, maxTry int) *client {
	if maxTry < 1 {
		maxTry = 1
	}
	return &client{
		maxTry: maxTry,
		Client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true,
				},
				TLSHandshakeTimeout:   10 * time.Second,
				MaxIdleConns:          128,
				MaxConnsPerHost:       64,
				IdleConnTimeout:       1 * time.Minute,
				ExpectContinueTimeout: 10 * time.Second,
			},
		},
	}
}

// Get sends an HTTP GET request to the specified URL with optional headers.
func (c *client) Get(url string, headers ...string) (*Result, error) {
	return c.do(url, http.MethodGet, nil, headers...)
}

// Post sends an HTTP POST request to the specified URL with a body and optional headers.
func (c *client) Post(url string, body interface{}, headers ...string) (*Result, error) {
	return c.do(url, http.MethodPost, body, headers...)
}

// Put sends an HTTP PUT request to the specified URL with a body and optional headers.
func (c *client) Put(url string, body interface{}, headers ...string) (*Result, error) {
	return c.do(url, http.MethodPut, body, headers...)
}

// Delete sends an HTTP DELETE request to the specified URL with optional headers.
func (c *client) Delete(url string, headers ...string) (*Result, error) {
	return c.do(url, http.MethodDelete, nil, headers...)
}

func (c *client) do(url, method string, body interface{}, headers ...string) (*Result, error) {
	req, err := BuildRequest(url, method, body, headers...)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Do executes the HTTP request, retrying transport failures up to the
// configured attempt budget. On success it reads and closes the response
// body and returns the status code, body and headers.
func (c *client) Do(req *http.Request) (*Result, error) {
	var rsp *http.Response
	var err error
	for i := 0; i < c.maxTry; i++ {
		if rsp, err = c.Client.Do(req); err == nil {
			break
		} else if i == c.maxTry-1 {
			return nil, err
		}
	}
	if rsp == nil {
		return nil, fmt.Errorf("no result")
	}
	data, err := io.ReadAll(rsp.Body)
	defer rsp.Body.Close()
	if err != nil {
		return nil, err
	}
	return &Result{StatusCode: rsp.StatusCode, Body: data, Header: rsp.Header}, nil
}

// BuildRequest creates an HTTP request with the given URL, method, body, and headers.
// The body can be a string, []byte, io.Reader or any JSON-marshalable value.
// Headers are set in pairs (key, value); Content-Type defaults to "application/json".
func BuildRequest(url, method string, body interface{}, headers ...string) (*http.Request, error) {
	if !strings.Contains(url, "://") {
		url = "http://" + url
	}
	reader, err := cvtIOReader(body)
	if err != nil {
		return nil, err
	}
	request, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, err
	}
	for i := 0; i < len(headers); i += 2 {
		if i+1 >= len(headers) {
			break
		}
		request.Header.Set(headers[i], headers[i+1])
	}
	request.Header.Set("Content-Type", "application/json")
	return request, nil
}

func cvtIOReader(body interface{}) (io.Reader, error) {
	if body == nil {
		return nil, nil
	}
	var reader io.Reader
	switch v := body.(type) {
	case string:
		reader = strings.NewReader(v)
	case io.Reader:
		reader = v
	case []byte:
		reader = bytes.NewReader(v)
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}
	return reader, nil
}
