package runact

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"sync"

	"github.com/runact/runact/internal/errors"
	"golang.org/x/crypto/nacl/box"
	"golang.org/x/exp/slices"
)

// SetSecrets reconciles the repository's secrets with desired KEY=VALUE
// entries. With prune, secrets not named in desired are deleted first.
// Per-secret operations run concurrently and every one is attempted before
// any failure is surfaced, so partial progress is never silently lost.
// Secret values are never logged, only names.
func (r *Runner) SetSecrets(ctx context.Context, desired []string, prune bool) error {
	if prune {
		if err := r.pruneSecrets(ctx, desired); err != nil {
			return err
		}
	}
	if len(desired) == 0 {
		return nil
	}

	key, err := r.Gateway.PublicKey(ctx)
	if err != nil {
		return errors.Wrap(err, "PublicKey")
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []string
	)
	for _, entry := range desired {
		name, value, ok := parseSecret(entry)
		if !ok {
			r.Log.Logf("warning: skipping malformed secret entry (want KEY=VALUE)")
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sealed, err := SealSecret(value, key.GetKey())
			if err == nil {
				err = r.Gateway.UpsertSecret(ctx, name, key.GetKeyID(), sealed)
			}
			if err != nil {
				r.Log.Logf("setting secret %s: %v", name, err)
				mu.Lock()
				failed = append(failed, name)
				mu.Unlock()
				return
			}
			r.Log.Logf("set secret %s", name)
		}()
	}
	wg.Wait()
	if len(failed) > 0 {
		slices.Sort(failed)
		return &SecretsSyncError{Failed: failed}
	}
	return nil
}

// pruneSecrets deletes repository secrets not named in desired. Deletions
// run concurrently; failures are collected and surfaced only after every
// deletion was attempted.
func (r *Runner) pruneSecrets(ctx context.Context, desired []string) error {
	existing, err := r.Gateway.SecretNames(ctx)
	if err != nil {
		return errors.Wrap(err, "SecretNames")
	}
	keep := make(map[string]bool, len(desired))
	for _, entry := range desired {
		if name, _, ok := parseSecret(entry); ok {
			keep[name] = true
		}
	}
	var extras []string
	for _, name := range existing {
		if !keep[name] {
			extras = append(extras, name)
		}
	}
	slices.Sort(extras)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []string
	)
	for _, name := range extras {
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Gateway.DeleteSecret(ctx, name); err != nil {
				r.Log.Logf("deleting secret %s: %v", name, err)
				mu.Lock()
				failed = append(failed, name)
				mu.Unlock()
				return
			}
			r.Log.Logf("deleted secret %s", name)
		}()
	}
	wg.Wait()
	if len(failed) > 0 {
		slices.Sort(failed)
		return &SecretsSyncError{Failed: failed}
	}
	return nil
}

// parseSecret splits an entry on the first '='. Entries with a missing
// name or value are rejected.
func parseSecret(entry string) (name, value string, ok bool) {
	name, value, ok = strings.Cut(entry, "=")
	if !ok || name == "" || value == "" {
		return "", "", false
	}
	return name, value, true
}

// SealSecret encrypts value for the repository's base64-encoded public key
// using an anonymous NaCl sealed box, the scheme GitHub requires for
// secret values. The ciphertext is returned base64-encoded.
func SealSecret(value, publicKey string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil {
		return "", errors.Wrap(err, "DecodeString")
	}
	if len(raw) != 32 {
		return "", errors.Errorf("unexpected public key length: %d", len(raw))
	}
	var key [32]byte
	copy(key[:], raw)
	sealed, err := box.SealAnonymous(nil, []byte(value), &key, rand.Reader)
	if err != nil {
		return "", errors.Wrap(err, "SealAnonymous")
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}
