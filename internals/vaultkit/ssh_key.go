package vaultkit

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"fmt"
	"io/ioutil"
	"strings"
	"text/tabwriter"
	"time"

	"bitbucket.org/zombiezen/cardcpx/natsort"
	"github.com/docker/go-units"
	"golang.org/x/crypto/ssh"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/cli/ui"
	"github.com/vaultkit/vaultkit-cli/internals/vault"
)

// Errors
var (
	ErrUnsupportedKeyType = errMain.Code("unsupported_key_type").ErrorPref("unsupported key type %q: use ed25519 or rsa")
	ErrInvalidKeyBits     = errMain.Code("invalid_key_bits").ErrorPref("rsa keys must have at least 2048 bits, got %d")
	ErrCannotParseKey     = errMain.Code("cannot_parse_key").ErrorPref("cannot parse private key: %s")
	ErrCannotReadFile     = errMain.Code("cannot_read_file").ErrorPref("cannot read file at %s: %s")
	ErrNotAnSSHKey        = errMain.Code("not_an_ssh_key").ErrorPref("item %s is not an SSH key")
	ErrKeyNameNotSet      = errMain.Code("key_name_not_set").Error("the name of the key is required when input or output is piped")
)

const (
	keyTypeEd25519 = "ed25519"
	keyTypeRSA     = "rsa"

	defaultRSABits = 4096
	minRSABits     = 2048
)

// SSHKeyCommand handles the SSH keys in the vault.
type SSHKeyCommand struct {
	env *Env
}

// NewSSHKeyCommand creates a new SSHKeyCommand.
func NewSSHKeyCommand(env *Env) *SSHKeyCommand {
	return &SSHKeyCommand{
		env: env,
	}
}

// Register registers the command and its sub-commands on the provided Registerer.
func (cmd *SSHKeyCommand) Register(r cli.Registerer) {
	clause := r.Command("ssh-key", "Manage the SSH keys in your vault.")
	NewSSHKeyGenerateCommand(cmd.env).Register(clause)
	NewSSHKeyImportCommand(cmd.env).Register(clause)
	NewSSHKeyLsCommand(cmd.env).Register(clause)
	NewSSHKeyRmCommand(cmd.env).Register(clause)
	NewSSHKeyPubkeyCommand(cmd.env).Register(clause)
	NewSSHKeyExportCommand(cmd.env).Register(clause)
}

// accountFlag adds the --account flag shared by the ssh-key commands.
func accountFlag(clause *cli.CommandClause, account *string) {
	clause.Flags().StringVarP(account, "account", "a", "", "The account whose vault to use. Defaults to the active account.")
}

// newSSHKeyCipher creates a vault item holding key.
func newSSHKeyCipher(name string, key crypto.PrivateKey) (vault.Cipher, error) {
	if k, ok := key.(*ed25519.PrivateKey); ok {
		key = *k
	}
	block, err := ssh.MarshalPrivateKey(key, name)
	if err != nil {
		return vault.Cipher{}, ErrCannotParseKey(err)
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		return vault.Cipher{}, ErrCannotParseKey(err)
	}
	pub := signer.PublicKey()

	return vault.Cipher{
		ID:   vault.NewCipherID(),
		Type: vault.CipherTypeSSHKey,
		Name: name,
		SSHKey: &vault.SSHKey{
			PrivateKey:  string(pem.EncodeToMemory(block)),
			PublicKey:   strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pub))),
			Fingerprint: ssh.FingerprintSHA256(pub),
		},
	}, nil
}

// findSSHKey returns the SSH key item named idOrName.
func findSSHKey(v *vault.Vault, idOrName string) (*vault.Cipher, error) {
	c, err := v.Find(idOrName)
	if err != nil {
		return nil, err
	}
	if !c.IsSSHKey() {
		return nil, ErrNotAnSSHKey(idOrName)
	}
	return c, nil
}

// SSHKeyGenerateCommand generates a new SSH key in the vault.
type SSHKeyGenerateCommand struct {
	env     *Env
	name    cli.StringValue
	account string
	keyType string
	bits    int
}

// NewSSHKeyGenerateCommand creates a new SSHKeyGenerateCommand.
func NewSSHKeyGenerateCommand(env *Env) *SSHKeyGenerateCommand {
	return &SSHKeyGenerateCommand{
		env: env,
	}
}

// Register registers the command, arguments and flags on the provided Registerer.
func (cmd *SSHKeyGenerateCommand) Register(r cli.Registerer) {
	clause := r.Command("generate", "Generate a new SSH key and store it in the vault.")
	accountFlag(clause, &cmd.account)
	clause.Flags().StringVarP(&cmd.keyType, "type", "t", keyTypeEd25519, "The type of key to generate: ed25519 or rsa.")
	clause.Flags().IntVar(&cmd.bits, "bits", defaultRSABits, "The number of bits of an rsa key.")
	clause.BindAction(cmd.Run)
	clause.BindArguments([]cli.Argument{{Value: &cmd.name, Name: "name", Required: false, Description: "The name of the key. You are asked for it when it is omitted."}})
}

// Run handles the command with the options as specified in the command.
func (cmd *SSHKeyGenerateCommand) Run() error {
	key, err := generateKey(cmd.keyType, cmd.bits)
	if err != nil {
		return err
	}

	name := cmd.name.Param
	if name == "" {
		name, err = ui.AskWithDefault(cmd.env.io, "What is the name of the key?", "id_"+cmd.keyType)
		if err == ui.ErrCannotAsk {
			return ErrKeyNameNotSet
		} else if err != nil {
			return err
		}
	}

	account, err := cmd.env.Account(cmd.account)
	if err != nil {
		return err
	}
	store, v, err := cmd.env.OpenVault(account)
	if err != nil {
		return err
	}

	c, err := newSSHKeyCipher(name, key)
	if err != nil {
		return err
	}
	v.Add(c)
	err = store.Save(v)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.env.io.Output(), "Generated %s key %s (%s):\n%s\n", cmd.keyType, c.Name, c.SSHKey.Fingerprint, c.SSHKey.PublicKey)
	return nil
}

func generateKey(keyType string, bits int) (crypto.PrivateKey, error) {
	switch keyType {
	case keyTypeEd25519:
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		return key, nil
	case keyTypeRSA:
		if bits < minRSABits {
			return nil, ErrInvalidKeyBits(bits)
		}
		return rsa.GenerateKey(rand.Reader, bits)
	default:
		return nil, ErrUnsupportedKeyType(keyType)
	}
}

// SSHKeyImportCommand stores an existing private key in the vault.
type SSHKeyImportCommand struct {
	env     *Env
	name    cli.StringValue
	file    cli.StringValue
	account string
}

// NewSSHKeyImportCommand creates a new SSHKeyImportCommand.
func NewSSHKeyImportCommand(env *Env) *SSHKeyImportCommand {
	return &SSHKeyImportCommand{
		env: env,
	}
}

// Register registers the command, arguments and flags on the provided Registerer.
func (cmd *SSHKeyImportCommand) Register(r cli.Registerer) {
	clause := r.Command("import", "Import a private key file into the vault. Encrypted keys are decrypted before they are stored.")
	accountFlag(clause, &cmd.account)
	clause.BindAction(cmd.Run)
	clause.BindArguments([]cli.Argument{
		{Value: &cmd.name, Name: "name", Required: true, Description: "The name of the key."},
		{Value: &cmd.file, Name: "file", Required: true, Description: "The path to the private key, e.g. ~/.ssh/id_ed25519."},
	})
}

// Run handles the command with the options as specified in the command.
func (cmd *SSHKeyImportCommand) Run() error {
	raw, err := ioutil.ReadFile(cmd.file.Param)
	if err != nil {
		return ErrCannotReadFile(cmd.file.Param, err)
	}
	key, err := cmd.parseKey(raw)
	if err != nil {
		return err
	}

	account, err := cmd.env.Account(cmd.account)
	if err != nil {
		return err
	}
	store, v, err := cmd.env.OpenVault(account)
	if err != nil {
		return err
	}

	c, err := newSSHKeyCipher(cmd.name.Param, key)
	if err != nil {
		return err
	}
	v.Add(c)
	err = store.Save(v)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.env.io.Output(), "Imported key %s (%s).\n", c.Name, c.SSHKey.Fingerprint)
	return nil
}

func (cmd *SSHKeyImportCommand) parseKey(raw []byte) (crypto.PrivateKey, error) {
	key, err := ssh.ParseRawPrivateKey(raw)
	if _, ok := err.(*ssh.PassphraseMissingError); ok {
		passphrase, err := ui.AskSecret(cmd.env.io, "Passphrase of "+cmd.file.Param+": ")
		if err != nil {
			return nil, err
		}
		key, err = ssh.ParseRawPrivateKeyWithPassphrase(raw, []byte(passphrase))
		if err != nil {
			return nil, ErrCannotParseKey(err)
		}
		return key, nil
	} else if err != nil {
		return nil, ErrCannotParseKey(err)
	}
	return key, nil
}

// SSHKeyLsCommand lists the SSH keys in the vault.
type SSHKeyLsCommand struct {
	env     *Env
	account string
	all     bool
}

// NewSSHKeyLsCommand creates a new SSHKeyLsCommand.
func NewSSHKeyLsCommand(env *Env) *SSHKeyLsCommand {
	return &SSHKeyLsCommand{
		env: env,
	}
}

// Register registers the command, arguments and flags on the provided Registerer.
func (cmd *SSHKeyLsCommand) Register(r cli.Registerer) {
	clause := r.Command("ls", "List the SSH keys in the vault.")
	clause.Alias("list")
	accountFlag(clause, &cmd.account)
	clause.Flags().BoolVar(&cmd.all, "all", false, "Also list keys that were removed.")
	clause.BindAction(cmd.Run)
	clause.BindArguments(nil)
}

// Run handles the command with the options as specified in the command.
func (cmd *SSHKeyLsCommand) Run() error {
	account, err := cmd.env.Account(cmd.account)
	if err != nil {
		return err
	}
	_, v, err := cmd.env.OpenVault(account)
	if err != nil {
		return err
	}

	rows := []string{}
	for _, c := range v.Ciphers {
		if !c.IsSSHKey() || (c.IsDeleted() && !cmd.all) {
			continue
		}
		removed := "-"
		if c.IsDeleted() {
			removed = fmt.Sprintf("%s ago", units.HumanDuration(time.Since(*c.DeletedDate)))
		}
		rows = append(rows, fmt.Sprintf("%s\t%s\t%s\t%s", c.Name, c.SSHKey.Fingerprint, c.ID, removed))
	}
	natsort.Strings(rows)

	w := tabwriter.NewWriter(cmd.env.io.Output(), 0, 4, 4, ' ', 0)
	fmt.Fprintln(w, "NAME\tFINGERPRINT\tID\tREMOVED")
	for _, row := range rows {
		fmt.Fprintln(w, row)
	}
	return w.Flush()
}

// SSHKeyRmCommand moves an SSH key to the trash.
type SSHKeyRmCommand struct {
	env     *Env
	name    cli.StringValue
	account string
	force   bool
}

// NewSSHKeyRmCommand creates a new SSHKeyRmCommand.
func NewSSHKeyRmCommand(env *Env) *SSHKeyRmCommand {
	return &SSHKeyRmCommand{
		env: env,
	}
}

// Register registers the command, arguments and flags on the provided Registerer.
func (cmd *SSHKeyRmCommand) Register(r cli.Registerer) {
	clause := r.Command("rm", "Remove an SSH key from the vault. The agent stops serving it.")
	clause.Alias("remove")
	accountFlag(clause, &cmd.account)
	clause.Flags().BoolVarP(&cmd.force, "force", "f", false, "Ignore confirmation.")
	clause.BindAction(cmd.Run)
	clause.BindArguments([]cli.Argument{{Value: &cmd.name, Name: "name", Required: true, Description: "The name or id of the key."}})
}

// Run handles the command with the options as specified in the command.
func (cmd *SSHKeyRmCommand) Run() error {
	account, err := cmd.env.Account(cmd.account)
	if err != nil {
		return err
	}
	store, v, err := cmd.env.OpenVault(account)
	if err != nil {
		return err
	}
	c, err := findSSHKey(v, cmd.name.Param)
	if err != nil {
		return err
	}

	if !cmd.force {
		confirmed, err := ui.ConfirmCaseInsensitive(
			cmd.env.io,
			fmt.Sprintf("This removes the SSH key %s (%s). Please type in the name of the key to confirm", c.Name, c.SSHKey.Fingerprint),
			c.Name,
		)
		if err == ui.ErrCannotAsk {
			return ErrCannotDoWithoutForce
		} else if err != nil {
			return err
		}
		if !confirmed {
			fmt.Fprintln(cmd.env.io.Output(), "Name does not match. Aborting.")
			return nil
		}
	}

	err = v.Trash(c.ID, time.Now().UTC())
	if err != nil {
		return err
	}
	err = store.Save(v)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.env.io.Output(), "Removed SSH key %s.\n", cmd.name.Param)
	return nil
}

// SSHKeyPubkeyCommand prints the public key of an SSH key.
type SSHKeyPubkeyCommand struct {
	env          *Env
	name         cli.StringValue
	account      string
	useClipboard bool
}

// NewSSHKeyPubkeyCommand creates a new SSHKeyPubkeyCommand.
func NewSSHKeyPubkeyCommand(env *Env) *SSHKeyPubkeyCommand {
	return &SSHKeyPubkeyCommand{
		env: env,
	}
}

// Register registers the command, arguments and flags on the provided Registerer.
func (cmd *SSHKeyPubkeyCommand) Register(r cli.Registerer) {
	clause := r.Command("pubkey", "Print the public key of an SSH key in authorized_keys format.")
	accountFlag(clause, &cmd.account)
	clause.Flags().BoolVarP(&cmd.useClipboard, "clip", "c", false, "Copy the public key to the clipboard.")
	clause.BindAction(cmd.Run)
	clause.BindArguments([]cli.Argument{{Value: &cmd.name, Name: "name", Required: true, Description: "The name or id of the key."}})
}

// Run handles the command with the options as specified in the command.
func (cmd *SSHKeyPubkeyCommand) Run() error {
	account, err := cmd.env.Account(cmd.account)
	if err != nil {
		return err
	}
	_, v, err := cmd.env.OpenVault(account)
	if err != nil {
		return err
	}
	c, err := findSSHKey(v, cmd.name.Param)
	if err != nil {
		return err
	}

	if cmd.useClipboard {
		err = cmd.env.Clipper().WriteAll([]byte(c.SSHKey.PublicKey))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.env.io.Output(), "Copied the public key of %s to the clipboard.\n", c.Name)
		return nil
	}

	fmt.Fprintln(cmd.env.io.Output(), c.SSHKey.PublicKey)
	return nil
}

// SSHKeyExportCommand prints the private key of an SSH key.
type SSHKeyExportCommand struct {
	env                 *Env
	name                cli.StringValue
	account             string
	useClipboard        bool
	clearClipboardAfter time.Duration
}

// NewSSHKeyExportCommand creates a new SSHKeyExportCommand.
func NewSSHKeyExportCommand(env *Env) *SSHKeyExportCommand {
	return &SSHKeyExportCommand{
		env:                 env,
		clearClipboardAfter: defaultClearClipboardAfter,
	}
}

// Register registers the command, arguments and flags on the provided Registerer.
func (cmd *SSHKeyExportCommand) Register(r cli.Registerer) {
	clause := r.Command("export", "Print the unencrypted private key of an SSH key.")
	accountFlag(clause, &cmd.account)
	clause.Flags().BoolVarP(&cmd.useClipboard,
		"clip", "c", false,
		fmt.Sprintf(
			"Copy the private key to the clipboard. The clipboard is automatically cleared after %s.",
			units.HumanDuration(cmd.clearClipboardAfter),
		),
	)
	clause.BindAction(cmd.Run)
	clause.BindArguments([]cli.Argument{{Value: &cmd.name, Name: "name", Required: true, Description: "The name or id of the key."}})
}

// Run handles the command with the options as specified in the command.
func (cmd *SSHKeyExportCommand) Run() error {
	account, err := cmd.env.Account(cmd.account)
	if err != nil {
		return err
	}
	_, v, err := cmd.env.OpenVault(account)
	if err != nil {
		return err
	}
	c, err := findSSHKey(v, cmd.name.Param)
	if err != nil {
		return err
	}

	if cmd.useClipboard {
		err = WriteClipboardAutoClear([]byte(c.SSHKey.PrivateKey), cmd.clearClipboardAfter, cmd.env.Clipper())
		if err != nil {
			return err
		}
		fmt.Fprintf(
			cmd.env.io.Output(),
			"Copied the private key of %s to the clipboard. It will be cleared after %s.\n",
			c.Name,
			units.HumanDuration(cmd.clearClipboardAfter),
		)
		return nil
	}

	fmt.Fprint(cmd.env.io.Output(), c.SSHKey.PrivateKey)
	return nil
}
