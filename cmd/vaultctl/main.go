package main

import (
	"context"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"vaultgraph.org/internal/ids"
	"vaultgraph.org/internal/store/pg"
	"vaultgraph.org/internal/trust"
)

// vaultctl is the management-side companion of the API server: it mutates the
// trust records the server only reads.
func main() {
	log.SetFlags(0)
	dsn := flag.String("dsn", os.Getenv("VAULTGRAPH_PG_DSN"), "PostgreSQL DSN")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or VAULTGRAPH_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		usage()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "create-org":
		err = createOrg(ctx, store, args)
	case "suspend-org":
		err = setOrgStatus(ctx, store, args, trust.OrgSuspended)
	case "activate-org":
		err = setOrgStatus(ctx, store, args, trust.OrgActive)
	case "create-vault":
		err = createVault(ctx, store, args)
	case "delete-vault":
		err = deleteVault(ctx, store, args)
	case "create-client":
		err = createClient(ctx, store, args)
	case "deactivate-client":
		err = setClientStatus(ctx, store, args, trust.ClientInactive)
	case "activate-client":
		err = setClientStatus(ctx, store, args, trust.ClientActive)
	case "issue-cert":
		err = issueCert(ctx, store, args)
	case "revoke-cert":
		err = revokeCert(ctx, store, args)
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func usage() {
	log.Fatal(`usage: vaultctl [-dsn ...] <command>

commands:
  create-org        -name <name>
  suspend-org       -id <org-id>
  activate-org      -id <org-id>
  create-vault      -org <org-id> -name <name>
  delete-vault      -id <vault-id>
  create-client     -org <org-id> -name <name>
  deactivate-client -id <client-id>
  activate-client   -id <client-id>
  issue-cert        -client <client-id> -key <ed25519 public key PEM>
  revoke-cert       -kid <kid>`)
}

func createOrg(ctx context.Context, store *pg.Store, args []string) error {
	fs := flag.NewFlagSet("create-org", flag.ExitOnError)
	name := fs.String("name", "", "organization name")
	_ = fs.Parse(args)
	if *name == "" {
		return fmt.Errorf("-name is required")
	}
	id := ids.New()
	if err := store.PutOrganization(ctx, trust.Organization{ID: id, Name: *name, Status: trust.OrgActive}); err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func setOrgStatus(ctx context.Context, store *pg.Store, args []string, status trust.OrgStatus) error {
	fs := flag.NewFlagSet("org-status", flag.ExitOnError)
	id := fs.String("id", "", "organization id")
	_ = fs.Parse(args)
	if *id == "" {
		return fmt.Errorf("-id is required")
	}
	return store.SetOrganizationStatus(ctx, *id, status)
}

func createVault(ctx context.Context, store *pg.Store, args []string) error {
	fs := flag.NewFlagSet("create-vault", flag.ExitOnError)
	org := fs.String("org", "", "owning organization id")
	name := fs.String("name", "", "vault name")
	_ = fs.Parse(args)
	if *org == "" || *name == "" {
		return fmt.Errorf("-org and -name are required")
	}
	id := ids.New()
	if err := store.PutVault(ctx, trust.Vault{ID: id, OrgID: *org, Name: *name, Status: trust.VaultActive}); err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func deleteVault(ctx context.Context, store *pg.Store, args []string) error {
	fs := flag.NewFlagSet("delete-vault", flag.ExitOnError)
	id := fs.String("id", "", "vault id")
	_ = fs.Parse(args)
	if *id == "" {
		return fmt.Errorf("-id is required")
	}
	// drops the tuple graph and tombstones the vault in one transaction
	return store.DeleteVault(ctx, *id)
}

func createClient(ctx context.Context, store *pg.Store, args []string) error {
	fs := flag.NewFlagSet("create-client", flag.ExitOnError)
	org := fs.String("org", "", "owning organization id")
	name := fs.String("name", "", "client name")
	_ = fs.Parse(args)
	if *org == "" || *name == "" {
		return fmt.Errorf("-org and -name are required")
	}
	id := ids.New()
	if err := store.PutClient(ctx, trust.Client{ID: id, OrgID: *org, Name: *name, Status: trust.ClientActive}); err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func setClientStatus(ctx context.Context, store *pg.Store, args []string, status trust.ClientStatus) error {
	fs := flag.NewFlagSet("client-status", flag.ExitOnError)
	id := fs.String("id", "", "client id")
	_ = fs.Parse(args)
	if *id == "" {
		return fmt.Errorf("-id is required")
	}
	return store.SetClientStatus(ctx, *id, status)
}

func issueCert(ctx context.Context, store *pg.Store, args []string) error {
	fs := flag.NewFlagSet("issue-cert", flag.ExitOnError)
	client := fs.String("client", "", "client id")
	keyPath := fs.String("key", "", "path to the ed25519 public key (PEM)")
	_ = fs.Parse(args)
	if *client == "" || *keyPath == "" {
		return fmt.Errorf("-client and -key are required")
	}
	pub, err := readPublicKey(*keyPath)
	if err != nil {
		return err
	}
	kid := ids.New()
	if err := store.PutCertificate(ctx, trust.Certificate{
		ID:        ids.New(),
		ClientID:  *client,
		Kid:       kid,
		PublicKey: pub,
		Status:    trust.CertActive,
		IssuedAt:  time.Now().UTC(),
	}); err != nil {
		return err
	}
	fmt.Println(kid)
	return nil
}

func revokeCert(ctx context.Context, store *pg.Store, args []string) error {
	fs := flag.NewFlagSet("revoke-cert", flag.ExitOnError)
	kid := fs.String("kid", "", "certificate kid")
	_ = fs.Parse(args)
	if *kid == "" {
		return fmt.Errorf("-kid is required")
	}
	return store.RevokeCertificate(ctx, *kid)
}

func readPublicKey(path string) (ed25519.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%s: not a PEM file", path)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%s: not an ed25519 key", path)
	}
	return pub, nil
}
