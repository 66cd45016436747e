// Command accountlink levanta el servicio de login federado y vinculación de
// cuentas, y expone tareas operativas (migraciones, diagnóstico de providers).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
