package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	Token     string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte, headers map[string]string) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func main() {
	var (
		baseURL = envOr("KEYBRIDGE_URL", "http://localhost:8080")
		token   = envOr("KEYBRIDGE_TOKEN", "")
		out     = envOr("KEYBRIDGE_OUT", "text")
		timeout = 30 * time.Second
	)

	root := &cobra.Command{
		Use:   "keybridgectl",
		Short: "CLI de operador para keybridge",
	}

	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del gateway (env KEYBRIDGE_URL)")
	root.PersistentFlags().StringVar(&token, "token", token, "Token de sesión (env KEYBRIDGE_TOKEN)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	httpClient := &http.Client{Timeout: timeout}
	cl := &client{BaseURL: baseURL, Token: token, OutFormat: out, HTTP: httpClient}

	// login: imprime el access token para exportar en KEYBRIDGE_TOKEN
	var loginUser, loginPass string
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Iniciar sesión de operador",
		RunE: func(cmd *cobra.Command, args []string) error {
			if loginUser == "" || loginPass == "" {
				return fmt.Errorf("--user y --pass son requeridos")
			}
			b, _ := json.Marshal(map[string]string{"username": loginUser, "password": loginPass})
			status, body, err := cl.do("POST", "/v1/auth/login", b, nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("login fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	loginCmd.Flags().StringVar(&loginUser, "user", "", "Usuario operador")
	loginCmd.Flags().StringVar(&loginPass, "pass", "", "Password")

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Cerrar la sesión actual (revoca el token)",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("POST", "/v1/auth/logout", nil, nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("logout fallo: status=%d body=%s", status, string(body))
			}
			fmt.Println("ok")
			return nil
		},
	}

	// grupo keys
	keysCmd := &cobra.Command{Use: "keys", Short: "Gestión de split keys"}

	var createProvider, createCredential, createKeyID string
	keysCreateCmd := &cobra.Command{
		Use:   "create",
		Short: "Dividir una credencial (el fragmento se muestra UNA vez)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if createProvider == "" || createCredential == "" {
				return fmt.Errorf("--provider y --credential son requeridos")
			}
			payload := map[string]string{
				"provider":   createProvider,
				"credential": createCredential,
			}
			if createKeyID != "" {
				payload["key_id"] = createKeyID
			}
			b, _ := json.Marshal(payload)
			status, body, err := cl.do("POST", "/v1/keys", b, nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("create fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	keysCreateCmd.Flags().StringVar(&createProvider, "provider", "", "Proveedor upstream (ej. openai)")
	keysCreateCmd.Flags().StringVar(&createCredential, "credential", "", "Credencial a dividir")
	keysCreateCmd.Flags().StringVar(&createKeyID, "key-id", "", "Key ID propio (opcional)")

	keysListCmd := &cobra.Command{
		Use:   "list",
		Short: "Listar split keys (sin material criptográfico)",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/v1/keys", nil, nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("list fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}

	keysDeactivateCmd := &cobra.Command{
		Use:   "deactivate <key-id>",
		Short: "Desactivar una split key (terminal, sin reactivación)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("DELETE", "/v1/keys/"+args[0], nil, nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("deactivate fallo: status=%d body=%s", status, string(body))
			}
			fmt.Println("ok")
			return nil
		},
	}

	keysCmd.AddCommand(keysCreateCmd, keysListCmd, keysDeactivateCmd)

	// grupo webhooks
	webhooksCmd := &cobra.Command{Use: "webhooks", Short: "Destinos de notificación"}

	var whURL string
	webhooksAddCmd := &cobra.Command{
		Use:   "add",
		Short: "Registrar un destino (la URL pasa el validador de seguridad)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if whURL == "" {
				return fmt.Errorf("--url es requerida")
			}
			b, _ := json.Marshal(map[string]string{"url": whURL})
			status, body, err := cl.do("POST", "/v1/webhooks", b, nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("add fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	webhooksAddCmd.Flags().StringVar(&whURL, "url", "", "URL https del destino")
	webhooksCmd.AddCommand(webhooksAddCmd)

	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Verificar que el gateway responde",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/healthz", nil, nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("ping fallo: status=%d body=%s", status, string(body))
			}
			if cl.OutFormat == "text" {
				fmt.Println("ok")
				return nil
			}
			cl.print(status, body)
			return nil
		},
	}

	root.AddCommand(loginCmd, logoutCmd, keysCmd, webhooksCmd, pingCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
