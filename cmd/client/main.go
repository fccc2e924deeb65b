package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/NicolasHaas/chatd/pkg/client"
	"github.com/NicolasHaas/chatd/pkg/logging"
	"github.com/NicolasHaas/chatd/pkg/protocol"
)

// Config is read from the environment (and .env.local); flags override it.
type Config struct {
	Addr      string `env:"CHAT_ADDR,default=localhost:9500"`
	User      string `env:"CHAT_USER"`
	LogLevel  string `env:"CHAT_LOG_LEVEL,default=warn"`
	LogFormat string `env:"CHAT_LOG_FORMAT,default=text"`
}

var (
	addr     string
	username string
	register bool
)

var rootCmd = &cobra.Command{
	Use:           "chat",
	Short:         "Terminal client for chatd",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		conf, err := loadConfig(ctx, cmd)
		if err != nil {
			return err
		}

		in := bufio.NewReader(cmd.InOrStdin())
		out := cmd.OutOrStdout()
		if conf.User == "" {
			if conf.User, err = prompt(in, out, "Username: "); err != nil {
				return err
			}
		}
		password, err := prompt(in, out, "Password: ")
		if err != nil {
			return err
		}

		if register {
			if err := client.Register(ctx, conf.Addr, conf.User, password); err != nil {
				return errors.New(client.Describe(err))
			}
			fmt.Fprintf(out, "Registered '%s'. You can log in now.\n", conf.User)
			return nil
		}

		conn, err := client.Login(ctx, conf.Addr, conf.User, password)
		if err != nil {
			return errors.New(client.Describe(err))
		}
		defer func() { _ = conn.Close() }()
		fmt.Fprintf(out, "Connected to %s as %s. Type /help for commands.\n", conf.Addr, conf.User)
		return chat(ctx, conn, in, out)
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&addr, "addr", "a", "", "Server address (default $CHAT_ADDR or localhost:9500)")
	flags.StringVarP(&username, "user", "u", "", "Username (default $CHAT_USER)")
	flags.BoolVar(&register, "register", false, "Register the account instead of logging in")
}

func loadConfig(ctx context.Context, cmd *cobra.Command) (*Config, error) {
	conf := Config{}

	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err := envconfig.Process(ctx, &conf); err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("addr") {
		conf.Addr = addr
	}
	if cmd.Flags().Changed("user") {
		conf.User = username
	}

	if err := logging.Setup(logging.Options{
		Level:  conf.LogLevel,
		Format: conf.LogFormat,
		Output: os.Stderr,
	}); err != nil {
		return nil, err
	}
	return &conf, nil
}

// chat prints incoming frames and sends stdin lines until either side ends.
func chat(ctx context.Context, conn *client.Conn, in *bufio.Reader, out io.Writer) error {
	done := make(chan error, 1)
	go func() {
		for {
			f, err := conn.Receive()
			if errors.Is(err, protocol.ErrUnknownFlag) {
				continue
			}
			if err != nil {
				done <- nil
				return
			}
			fmt.Fprintln(out, client.Format(f))
			if f.Flag.IsTerminal() {
				done <- nil
				return
			}
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := in.ReadString('\n')
			if line = strings.TrimRight(line, "\r\n"); line != "" || err == nil {
				lines <- line
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-done:
			fmt.Fprintln(out, "Disconnected from the server.")
			return err
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := conn.Send(line); err != nil {
				return err
			}
		}
	}
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "chat:", err)
		os.Exit(1)
	}
}
