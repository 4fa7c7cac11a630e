package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		handleAuth(args)
	case "tenant":
		handleTenant(args)
	case "user":
		handleUser(args)
	case "grant":
		handleGrant(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: surelog auth <login|logout|who>")
		return
	}

	switch args[0] {
	case "login":
		loginUser(args[1:])
	case "logout":
		logoutUser()
	case "who":
		whoAmI()
	default:
		fmt.Printf("unknown auth command: %s\n", args[0])
	}
}

func handleTenant(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: surelog tenant <create|show|users|mine|add-member>")
		return
	}

	switch args[0] {
	case "create":
		createTenant(args[1:])
	case "show":
		showTenant(args[1:])
	case "users":
		listTenantUsers(args[1:])
	case "mine":
		listMyTenants()
	case "add-member":
		addMember(args[1:])
	default:
		fmt.Printf("unknown tenant command: %s\n", args[0])
	}
}

func handleUser(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: surelog user <create|me>")
		return
	}

	switch args[0] {
	case "create":
		createUser(args[1:])
	case "me":
		showMe()
	default:
		fmt.Printf("unknown user command: %s\n", args[0])
	}
}

func handleGrant(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: surelog grant <role|master>")
		return
	}

	switch args[0] {
	case "role":
		grantRole(args[1:])
	case "master":
		grantMaster(args[1:])
	default:
		fmt.Printf("unknown grant command: %s\n", args[0])
	}
}

// Auth commands
func loginUser(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	password := fs.String("password", "", "password")

	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"email": *email, "password": *password}
	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/auth/token", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		if token, ok := result["token"].(string); ok {
			saveToken(token)
			fmt.Printf("✓ Logged in as: %s\n", *email)
		}
	} else {
		fmt.Printf("✗ Login failed: %v\n", result)
	}
}

func logoutUser() {
	os.Remove(tokenFile())
	fmt.Println("✓ Logged out")
}

func whoAmI() {
	resp, ok := getJSON("/me")
	if !ok {
		return
	}
	fmt.Printf("✓ Logged in as %v (user %v)\n", resp["email"], resp["userId"])
}

// Tenant commands
func createTenant(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	id := fs.Int64("id", 0, "tenant ID")
	name := fs.String("name", "", "tenant name")

	fs.Parse(args)

	if *id <= 0 || *name == "" {
		fmt.Println("Error: id and name are required")
		fs.PrintDefaults()
		return
	}

	result, ok := postJSON("/tenants", map[string]interface{}{"tenantId": *id, "name": *name}, 201)
	if !ok {
		return
	}
	fmt.Printf("✓ Tenant created: %v (%v)\n", result["tenantId"], result["name"])
}

func showTenant(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: surelog tenant show <tenant-id>")
		return
	}
	resp, ok := getJSON("/tenants/" + args[0])
	if !ok {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tUSERS\tCREATED")
	fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", resp["tenantId"], resp["name"], resp["userCount"], resp["createdAt"])
	w.Flush()
}

func listTenantUsers(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: surelog tenant users <tenant-id>")
		return
	}

	req, _ := http.NewRequest("GET", getAPIURL()+"/tenants/"+args[0]+"/users", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var users []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&users)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tFIRST\tLAST")
	for _, u := range users {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", u["userId"], u["email"], u["firstName"], u["lastName"])
	}
	w.Flush()
}

func listMyTenants() {
	req, _ := http.NewRequest("GET", getAPIURL()+"/me/tenants", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var edges []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&edges)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TENANT\tROLE")
	for _, e := range edges {
		fmt.Fprintf(w, "%v\t%v\n", e["tenantId"], e["roleName"])
	}
	w.Flush()
}

func addMember(args []string) {
	fs := flag.NewFlagSet("add-member", flag.ExitOnError)
	tenant := fs.Int64("tenant", 0, "tenant ID")
	user := fs.Int64("user", 0, "user ID")
	role := fs.String("role", "", "role name")

	fs.Parse(args)

	if *tenant <= 0 || *user <= 0 || *role == "" {
		fmt.Println("Error: tenant, user, and role are required")
		fs.PrintDefaults()
		return
	}

	path := "/tenants/" + strconv.FormatInt(*tenant, 10) + "/members"
	result, ok := postJSON(path, map[string]interface{}{"userId": *user, "roleName": *role}, 201)
	if !ok {
		return
	}
	fmt.Printf("✓ User %v added to tenant %v as %v\n", result["userId"], result["tenantId"], result["roleName"])
}

// User commands
func createUser(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	tenant := fs.Int64("tenant", 0, "tenant ID")
	email := fs.String("email", "", "user email")
	password := fs.String("password", "", "password")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	role := fs.String("role", "member", "role name")

	fs.Parse(args)

	if *tenant <= 0 || *email == "" || *password == "" || *first == "" {
		fmt.Println("Error: tenant, email, password, and first are required")
		fs.PrintDefaults()
		return
	}

	path := "/tenants/" + strconv.FormatInt(*tenant, 10) + "/users"
	result, ok := postJSON(path, map[string]interface{}{
		"email":     *email,
		"password":  *password,
		"firstName": *first,
		"lastName":  *last,
		"roleName":  *role,
	}, 201)
	if !ok {
		return
	}
	fmt.Printf("✓ User created: %v (%v)\n", result["email"], result["userId"])
}

func showMe() {
	resp, ok := getJSON("/me")
	if !ok {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tFIRST\tLAST")
	fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", resp["userId"], resp["email"], resp["firstName"], resp["lastName"])
	w.Flush()
}

// Grant commands
func grantRole(args []string) {
	fs := flag.NewFlagSet("role", flag.ExitOnError)
	tenant := fs.Int64("tenant", 0, "tenant ID")
	role := fs.String("role", "", "role name")
	full := fs.Bool("full-access", false, "grant full access")
	add := fs.Bool("add-users", false, "grant add-users")
	view := fs.Bool("view-users", false, "grant view-users")

	fs.Parse(args)

	if *tenant <= 0 || *role == "" {
		fmt.Println("Error: tenant and role are required")
		fs.PrintDefaults()
		return
	}

	path := "/tenants/" + strconv.FormatInt(*tenant, 10) + "/permissions/" + *role
	_, ok := putJSON(path, map[string]interface{}{
		"hasFullAccess": *full,
		"canAddUsers":   *add,
		"canViewUsers":  *view,
	})
	if !ok {
		return
	}
	fmt.Printf("✓ Role %v updated on tenant %v\n", *role, *tenant)
}

func grantMaster(args []string) {
	fs := flag.NewFlagSet("master", flag.ExitOnError)
	master := fs.Int64("master", 0, "master ID")
	tenant := fs.Int64("tenant", 0, "tenant ID")
	role := fs.String("role", "", "role name")
	full := fs.Bool("full-access", false, "grant full access")
	add := fs.Bool("add-users", false, "grant add-users")

	fs.Parse(args)

	if *master <= 0 || *tenant <= 0 || *role == "" {
		fmt.Println("Error: master, tenant, and role are required")
		fs.PrintDefaults()
		return
	}

	path := "/masters/" + strconv.FormatInt(*master, 10) + "/permissions"
	_, ok := putJSON(path, map[string]interface{}{
		"roleName":      *role,
		"tenantId":      *tenant,
		"hasFullAccess": *full,
		"canAddUsers":   *add,
	})
	if !ok {
		return
	}
	fmt.Printf("✓ Master %v granted %v on tenant %v\n", *master, *role, *tenant)
}

// Helper functions
func getAPIURL() string {
	if url := os.Getenv("SURELOG_API"); url != "" {
		return url
	}
	return "http://localhost:9000/api"
}

func getJSON(path string) (map[string]interface{}, bool) {
	req, _ := http.NewRequest("GET", getAPIURL()+path, nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return nil, false
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode != 200 {
		fmt.Printf("✗ Request failed (%d): %v\n", resp.StatusCode, result)
		return nil, false
	}
	return result, true
}

func postJSON(path string, payload map[string]interface{}, wantStatus int) (map[string]interface{}, bool) {
	data, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", getAPIURL()+path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return nil, false
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode != wantStatus {
		fmt.Printf("✗ Request failed (%d): %v\n", resp.StatusCode, result)
		return nil, false
	}
	return result, true
}

func putJSON(path string, payload map[string]interface{}) (map[string]interface{}, bool) {
	data, _ := json.Marshal(payload)
	req, _ := http.NewRequest("PUT", getAPIURL()+path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return nil, false
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode != 200 {
		fmt.Printf("✗ Request failed (%d): %v\n", resp.StatusCode, result)
		return nil, false
	}
	return result, true
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return home + "/.surelog/token"
}

func saveToken(token string) error {
	home, _ := os.UserHomeDir()
	os.MkdirAll(home+"/.surelog", 0700)
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return string(data)
}

func addAuthHeader(req *http.Request) {
	token := loadToken()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func printUsage() {
	fmt.Print(`SureLog CLI

Usage:
  surelog <command> [options]

Commands:
  auth    Authentication (login, logout, who)
  tenant  Tenant operations (create, show, users, mine, add-member)
  user    User operations (create, me)
  grant   Permission grants (role, master)
  help    Show this help message

Environment Variables:
  SURELOG_API    API endpoint (default: http://localhost:9000/api)

Examples:
  surelog auth login -email admin@example.com -password secret
  surelog tenant create -id 42 -name "Acme"
  surelog user create -tenant 42 -email dev@acme.test -password pw -first Dev -role member
  surelog grant role -tenant 42 -role manager -add-users -view-users
`)
}
