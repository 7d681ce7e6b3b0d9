// Package hub integrates the external NGO registry: a thin HTTP client,
// local file storage for mirrored documents, and the reconciler that merges
// external profiles into local organization records.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"agora/internal/platform/config"
)

// maxFileSize bounds a single mirrored document download.
const maxFileSize = 32 << 20

// Profile is the external registry's organization document.
type Profile struct {
	General General `json:"organizationGeneral"`
	Legal   Legal   `json:"organizationLegal"`
}

// General is the registry's identity and contact section.
type General struct {
	Name               string `json:"name"`
	Address            string `json:"address"`
	City               string `json:"city"`
	County             string `json:"county"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	Description        string `json:"description"`
	RegistrationNumber string `json:"registrationNumber"`
	LogoURL            string `json:"logo"`
}

// Legal is the registry's legal and financial section.
type Legal struct {
	StatuteURL                 string     `json:"organizationStatute"`
	NonPoliticalAffiliationURL string     `json:"nonPoliticalAffiliation"`
	BalanceSheetURL            string     `json:"balanceSheet"`
	LegalRepresentative        LegalAgent `json:"legalRepresentative"`
	Directors                  []Director `json:"directors"`
}

type LegalAgent struct {
	FullName string `json:"fullName"`
}

type Director struct {
	FullName string `json:"fullName"`
}

// BoardCouncil flattens the directors list into one display string.
func (l Legal) BoardCouncil() string {
	names := make([]string, 0, len(l.Directors))
	for _, d := range l.Directors {
		if d.FullName != "" {
			names = append(names, d.FullName)
		}
	}
	return strings.Join(names, ", ")
}

// Client speaks the registry's HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(cfg config.HubConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// MyProfile fetches the profile the bearer token is scoped to.
func (c *Client) MyProfile(ctx context.Context, token string) (Profile, error) {
	return c.fetch(ctx, c.baseURL+"/organization-profile/", "Bearer "+token)
}

// Organization fetches one organization with the service credential.
func (c *Client) Organization(ctx context.Context, externalID int) (Profile, error) {
	return c.fetch(ctx, c.baseURL+"/organization/"+strconv.Itoa(externalID), "Token "+c.apiKey)
}

func (c *Client) fetch(ctx context.Context, url, authorization string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("build registry request: %w", err)
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("call registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("registry returned %d", resp.StatusCode)
	}
	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return Profile{}, fmt.Errorf("decode registry profile: %w", err)
	}
	return profile, nil
}

// Download fetches one registry-hosted file.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file host returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("file exceeds %d bytes", maxFileSize)
	}
	return data, nil
}
