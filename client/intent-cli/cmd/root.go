package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"IntentCode/backend/go/pkg/circuitbreaker"

	"github.com/spf13/cobra"
	clientv3 "go.etcd.io/etcd/client/v3"
)

var (
	serverURL     string
	authToken     string
	etcdEndpoints []string
	timeout       time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "intent-cli",
	Short: "A CLI client for the IntentCode project service",
	Long:  `A command-line interface for listing projects, browsing their file trees, submitting intentions and exporting projects.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if authToken == "" {
			authToken = os.Getenv("INTENTCODE_TOKEN")
		}
		if len(etcdEndpoints) == 0 || cmd.Flags().Changed("server") {
			return nil
		}
		return discoverServer(cmd.Context())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "project service base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "JWT issued by the user service (default $INTENTCODE_TOKEN)")
	rootCmd.PersistentFlags().StringSliceVar(&etcdEndpoints, "etcd", nil, "etcd endpoints used to discover the project service")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
}

// serviceKeyPrefix is where project service instances register themselves.
const serviceKeyPrefix = "/intentcode/services/project_service/"

// discoverServer picks the first registered project service instance.
func discoverServer(ctx context.Context) error {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   etcdEndpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("connect to etcd: %w", err)
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	resp, err := cli.Get(ctx, serviceKeyPrefix, clientv3.WithPrefix(), clientv3.WithLimit(1))
	if err != nil {
		return fmt.Errorf("discover project service: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return fmt.Errorf("no project service instance is registered")
	}
	serverURL = baseURL(string(resp.Kvs[0].Value))
	return nil
}

func baseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func newClient() *apiClient {
	return newAPIClient(serverURL, authToken, circuitbreaker.Settings{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Timeout:          10 * time.Second,
	}, timeout)
}
