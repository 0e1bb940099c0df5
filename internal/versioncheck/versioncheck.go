// Package versioncheck implements the Version Checker/Upgrader: it
// compares an installed photon's recorded version and content hash
// against what its marketplace source currently offers, and drives
// upgrade overwrites that refuse to clobber local edits unless forced.
package versioncheck

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/photon-run/photon/internal/marketplace"
	"github.com/photon-run/photon/internal/photonerr"
)

// Status reports whether an installed photon has an upgrade available and
// whether its source file has drifted from what was installed.
type Status struct {
	Record            marketplace.InstallRecord
	Remote            marketplace.ManifestEntry
	HasUpdate         bool
	IsLocallyModified bool
}

// Checker compares install records against marketplace resolution.
type Checker struct {
	market *marketplace.Manager
}

// New constructs a Checker backed by a marketplace Manager.
func New(market *marketplace.Manager) *Checker {
	return &Checker{market: market}
}

// Check compares the install record for a photon with its source's
// current offering and the photon's on-disk content hash.
func (c *Checker) Check(ctx context.Context, rec marketplace.InstallRecord, sourcePath string) (Status, error) {
	spec := rec.PhotonName
	if rec.SourceMarketplace != "" {
		spec = rec.SourceMarketplace + ":" + rec.PhotonName
	}
	res, err := c.market.Resolve(ctx, spec)
	if err != nil {
		return Status{}, err
	}

	hasUpdate, err := remoteNewer(res.Candidate.Entry.Version, rec.InstalledVersion)
	if err != nil {
		return Status{}, err
	}

	currentHash, err := hashFile(sourcePath)
	if err != nil {
		return Status{}, photonerr.Wrap(photonerr.Internal, err, "hash installed source")
	}

	return Status{
		Record:            rec,
		Remote:            res.Candidate.Entry,
		HasUpdate:         hasUpdate,
		IsLocallyModified: currentHash != rec.ContentHash,
	}, nil
}

// Upgrade overwrites sourcePath with the remote content and refreshes the
// install record atomically, unless the file was locally modified and
// force is false.
func (c *Checker) Upgrade(ctx context.Context, status Status, sourcePath string, force bool) (marketplace.InstallRecord, error) {
	if status.IsLocallyModified && !force {
		return marketplace.InstallRecord{}, photonerr.Newf(photonerr.IntegrityError,
			"%s was modified locally since install; use force to overwrite", status.Record.PhotonName)
	}

	spec := status.Record.SourceMarketplace + ":" + status.Record.PhotonName
	res, err := c.market.Resolve(ctx, spec)
	if err != nil {
		return marketplace.InstallRecord{}, err
	}

	body, err := c.market.Install(ctx, res.Candidate)
	if err != nil {
		return marketplace.InstallRecord{}, err
	}

	if err := writeFileAtomic(sourcePath, body); err != nil {
		return marketplace.InstallRecord{}, photonerr.Wrap(photonerr.Internal, err, "write upgraded source")
	}

	sum := sha256.Sum256(body)
	return marketplace.InstallRecord{
		PhotonName:        status.Record.PhotonName,
		SourceMarketplace: status.Record.SourceMarketplace,
		InstalledVersion:  res.Candidate.Entry.Version,
		InstalledAt:       time.Now(),
		ContentHash:       hex.EncodeToString(sum[:]),
	}, nil
}

func remoteNewer(remote, local string) (bool, error) {
	rv, err := semver.NewVersion(remote)
	if err != nil {
		return false, photonerr.Wrapf(photonerr.Internal, err, "parse remote version %q", remote)
	}
	lv, err := semver.NewVersion(local)
	if err != nil {
		return false, photonerr.Wrapf(photonerr.Internal, err, "parse installed version %q", local)
	}
	return rv.GreaterThan(lv), nil
}

func hashFile(path string) (string, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// writeFileAtomic writes body to path via a temp file plus rename, so a
// crash mid-upgrade never leaves a half-written photon source on disk.
func writeFileAtomic(path string, body []byte) error {
	tmp := path + ".upgrade.tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
