package russh_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	testifymock "github.com/stretchr/testify/mock"
	"golang.org/x/crypto/ssh"

	"github.com/ruffel/russh"
	"github.com/ruffel/russh/mock"
	"github.com/ruffel/russh/russhtest"
)

// connectExample starts an in-process server and returns a client connected to it.
func connectExample() (*russh.SSHClient, func()) {
	srv, err := russhtest.Start(russhtest.Options{Password: "secret"})
	if err != nil {
		panic(err)
	}

	client := russh.NewClient()

	err = client.Connect(context.Background(), srv.Host(), "demo",
		russh.Auth(russh.NewPasswordAuth("secret")),
		russh.WithPort(srv.Port()),
		russh.WithHostKeyCallback(ssh.FixedHostKey(srv.HostKey())),
	)
	if err != nil {
		panic(err)
	}

	return client, func() {
		_ = client.Close()
		_ = srv.Close()
	}
}

func ExampleSSHClient_Run() {
	client, done := connectExample()
	defer done()

	res, err := client.Run(context.Background(), "echo hello world")
	if err != nil {
		panic(err)
	}

	fmt.Printf("%s", res.Stdout)
	fmt.Printf("exit: %d\n", res.ExitCode)
	// Output:
	// hello world
	// exit: 0
}

func ExampleSSHClient_ExecCommand() {
	client, done := connectExample()
	defer done()

	ch, err := client.ExecCommand(context.Background(), "cat")
	if err != nil {
		panic(err)
	}

	defer func() { _ = ch.Close() }()

	_ = ch.WriteStdin("piped through cat")

	out, _ := ch.ReadStdout()
	again, _ := ch.ReadStdout()
	code, _ := ch.ExitStatus()

	fmt.Printf("%q %q %d\n", out, again, code)
	// Output: "piped through cat" "" 0
}

func ExampleSFTPClient_Chdir() {
	client, done := connectExample()
	defer done()

	fs, err := client.OpenSFTP(context.Background())
	if err != nil {
		panic(err)
	}

	defer func() { _ = fs.Close() }()

	_ = fs.Mkdir("/app")
	_ = fs.Chdir("/app")

	f, _ := fs.Open("notes.txt", "w")
	_, _ = f.Write([]byte("relative to /app"))
	_ = f.Close()

	names, _ := fs.ListDir("")
	cwd, _ := fs.Getcwd()

	fmt.Println(cwd, names)
	// Output: /app [notes.txt]
}

func ExampleSFTPClient_Put() {
	client, done := connectExample()
	defer done()

	fs, err := client.OpenSFTP(context.Background())
	if err != nil {
		panic(err)
	}

	defer func() { _ = fs.Close() }()

	dir, _ := os.MkdirTemp("", "russh-example-*")
	defer func() { _ = os.RemoveAll(dir) }()

	local := filepath.Join(dir, "largefile.dat")
	_ = os.WriteFile(local, []byte("1234567890"), 0o600)

	err = fs.Put(context.Background(), local, "/largefile.dat",
		russh.WithProgress(func(current, total int64) {
			fmt.Printf("Transferred %d/%d bytes\n", current, total)
		}),
	)
	if err != nil {
		panic(err)
	}

	// Output:
	// Transferred 10/10 bytes
}

func ExampleExecutor_Run_sudo() {
	// A mock session keeps the example away from real privileges.
	session := mock.NewSession()
	session.On("ExecCommand", testifymock.Anything, "sudo -n -- ls /root").
		Return(mock.NewChannel("secret.txt\n", "", 0), nil)

	res, err := russh.NewExecutor(session).Run(context.Background(), russh.NewCommand("ls", "/root"), russh.WithSudo())
	if err != nil {
		panic(err)
	}

	fmt.Printf("Sudo Output: %s", res.Stdout)
	// Output: Sudo Output: secret.txt
}

func ExampleFileSystem_upload() {
	var fs russh.FileSystem = mock.NewFileSystem()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fs.(*mock.FileSystem).On("Put", ctx, "./config.json", "/etc/app/config.json", testifymock.Anything).Return(nil)

	err := fs.Put(ctx, "./config.json", "/etc/app/config.json",
		russh.WithPermissions(0o600),
	)
	if err != nil {
		log.Printf("Upload failed: %v", err)
	}
	// Output:
}

func ExampleNewFromSSHConfigReader() {
	configContent := `
Host prod-db
  HostName 10.0.0.5
  User admin
  Port 2222
  IdentityFile /keys/prod_key.pem
  StrictHostKeyChecking no
`

	cfg, err := russh.NewFromSSHConfigReader("prod-db", strings.NewReader(configContent))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Host: %s\n", cfg.Host)
	fmt.Printf("User: %s\n", cfg.User)
	fmt.Printf("Port: %d\n", cfg.Port)
	fmt.Printf("Key: %s\n", cfg.Auth.PrivateKey.Path())

	// Output:
	// Host: 10.0.0.5
	// User: admin
	// Port: 2222
	// Key: /keys/prod_key.pem
}

func ExampleCmd() {
	cmd := russh.Cmd("sh").
		Arg("-c").
		Arg("echo $GREETING").
		Env("GREETING", "hello builder").
		Dir("/tmp").
		Build()

	fmt.Println(cmd.String())
	// Output: export GREETING='hello builder'; cd '/tmp' && sh -c 'echo $GREETING'
}
