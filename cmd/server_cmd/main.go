package main

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/TEENet-io/atomic-swap/cmd"
	"github.com/TEENet-io/atomic-swap/logconfig"
)

const (
	ENV_CONFIG_FILE_PATH = "SWAP_CONFIG"
)

func main() {
	// Tool to read environment variables
	viper.AutomaticEnv()

	// Accessing an environment variable of configuration file location.
	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	fmt.Printf("Swap server configuration file = %s\n", _config_file)

	// See if file exists
	if !fileExists(_config_file) {
		fmt.Printf("Swap server configuration file not found: %s\n", _config_file)
		return
	}

	// Read from config file.
	success := initializeViper(_config_file)
	if !success {
		return
	}

	if err := logconfig.ConfigLogger(viper.GetString("LOG_LEVEL")); err != nil {
		fmt.Printf("Error configuring logger: %s\n", err)
		return
	}

	// Make the configuration
	ssc := PrepareSwapServerConfig()

	fmt.Println("Starting swap server... press Ctrl+C to kill the server")
	// Start server and block.
	cmd.StartSwapServerAndWait(ssc)
}

func fileExists(filePath string) bool {
	st, err := os.Stat(filePath)
	return err == nil && !st.IsDir()
}

func initializeViper(filePath string) bool {
	viper.SetConfigFile(filePath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Error reading configuration file, %s", err)
		return false
	}
	return true
}

// chainConfig reads the <PREFIX>_* keys of one chain.
func chainConfig(prefix string) cmd.ChainConfig {
	return cmd.ChainConfig{
		Mode:          viper.GetString(prefix + "_MODE"),
		URL:           viper.GetString(prefix + "_URL"),
		Network:       viper.GetString(prefix + "_NETWORK"),
		PrivateKey:    viper.GetString(prefix + "_PRIVATE_KEY"),
		Seed:          viper.GetString(prefix + "_SEED"),
		Contract:      viper.GetString(prefix + "_CONTRACT"),
		ERC20Contract: viper.GetString(prefix + "_ERC20_CONTRACT"),
	}
}

// PrepareSwapServerConfig reads configuration variables and returns a SwapServerConfig.
func PrepareSwapServerConfig() *cmd.SwapServerConfig {
	return &cmd.SwapServerConfig{
		// chain side
		Ethereum: chainConfig("ETH"),
		Solana:   chainConfig("SOL"),
		TON:      chainConfig("TON"),
		Aptos:    chainConfig("APTOS"),
		// state side
		StoreBackend:  viper.GetString("STORE_BACKEND"),
		StorePath:     viper.GetString("STORE_PATH"),
		RedisAddr:     viper.GetString("REDIS_ADDR"),
		RedisPassword: viper.GetString("REDIS_PASSWORD"),
		RedisDB:       viper.GetInt("REDIS_DB"),
		// coordinator side
		DestinationTimeLockMargin: viper.GetDuration("DESTINATION_TIMELOCK_MARGIN"),
		MonitorInterval:           viper.GetDuration("MONITOR_INTERVAL"),
		MonitorConcurrency:        viper.GetInt("MONITOR_CONCURRENCY"),
		// Http side
		HttpIp:   viper.GetString("HTTP_IP"),
		HttpPort: viper.GetString("HTTP_PORT"),
	}
}
